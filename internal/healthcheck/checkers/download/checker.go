package downloadchecker

import (
	"context"
	"log/slog"
	"os"
	"os/exec"

	"github.com/linerelay/linerelay/internal/config"
	"github.com/linerelay/linerelay/internal/healthcheck"
)

const checkTypeDownload = "download"

// Checker reports whether Spaces downloads can run: the downloader binary
// must be on PATH and the cookies file must exist.
type Checker struct {
	logger   *slog.Logger
	command  string
	cookies  string
	lookPath func(string) (string, error)
}

// NewChecker creates a downloader health checker.
func NewChecker(log *slog.Logger, cfg config.Config) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:   log.With(slog.String("checker", "healthcheck_download")),
		command:  cfg.Download.Command,
		cookies:  cfg.Download.CookiesPath,
		lookPath: exec.LookPath,
	}
}

// ListChecks never reports errors: the relay keeps working without the
// downloader, so problems here are warnings.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	command := healthcheck.CheckResult{
		ID:       checkTypeDownload + ".command",
		Type:     checkTypeDownload,
		Status:   healthcheck.StatusOK,
		Summary:  "Downloader is installed.",
		Metadata: map[string]any{"command": c.command},
	}
	if path, err := c.lookPath(c.command); err != nil {
		command.Status = healthcheck.StatusWarn
		command.Summary = "Downloader is not installed."
		command.Detail = err.Error()
		c.logger.Debug("downloader not found", slog.String("command", c.command), slog.Any("error", err))
	} else {
		command.Metadata["path"] = path
	}

	cookies := healthcheck.CheckResult{
		ID:      checkTypeDownload + ".cookies",
		Type:    checkTypeDownload,
		Status:  healthcheck.StatusOK,
		Summary: "Cookies file is present.",
	}
	if _, err := os.Stat(c.cookies); err != nil {
		cookies.Status = healthcheck.StatusWarn
		cookies.Summary = "Cookies file not found."
		cookies.Detail = c.cookies
	}
	return []healthcheck.CheckResult{command, cookies}
}
