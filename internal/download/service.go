package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linerelay/linerelay/internal/config"
	"github.com/linerelay/linerelay/internal/prune"
)

// Service runs downloads and keeps the records of asynchronous ones in memory.
type Service struct {
	dir       string
	cookies   string
	command   string
	timeout   time.Duration
	retention time.Duration
	runner    Runner
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
	records map[string]*Record
}

// NewService creates a download service. A nil runner runs commands with
// ExecRunner.
func NewService(log *slog.Logger, cfg config.DownloadConfig, runner Runner) *Service {
	if log == nil {
		log = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		dir:       cfg.Dir,
		cookies:   cfg.CookiesPath,
		command:   cfg.Command,
		timeout:   cfg.Timeout(),
		retention: cfg.RetentionDuration(),
		runner:    runner,
		logger:    log.With(slog.String("service", "download")),
		now:       time.Now,
		newID:     uuid.NewString,
		ctx:       ctx,
		cancel:    cancel,
		records:   map[string]*Record{},
	}
}

// Execute downloads the Space at url synchronously. The audio ends up at
// <dir>/space_<id>.m4a. Failures are reported in the result, never as a panic
// or error.
func (s *Service) Execute(ctx context.Context, url, id string) Result {
	log := s.logger.With(slog.String("download_id", id))
	log.Info("starting download", slog.String("url", url))

	tempDir := filepath.Join(s.dir, "temp_"+id)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		log.Error("create temp dir failed", slog.Any("error", err))
		return s.failed(id, url, fmt.Sprintf("unexpected error: %v", err), "")
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			log.Warn("failed to clean up temp directory", slog.Any("error", err))
		}
	}()

	cookies, err := filepath.Abs(s.cookies)
	if err == nil {
		_, err = os.Stat(cookies)
	}
	if err != nil {
		log.Error("cookies file not found", slog.String("path", s.cookies))
		return s.failed(id, url, "cookies file not found", "")
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	args := []string{"-i", url, "-c", cookies}
	log.Info("executing command", slog.String("command", s.command), slog.Any("args", args))
	stdout, stderr, code, err := s.runner.Run(runCtx, tempDir, s.command, args...)
	if stdout != "" {
		log.Info("command output", slog.String("stdout", stdout))
	}
	if stderr != "" {
		stderr = prune.Edges(stderr, "stderr", prune.DefaultConfig())
		log.Error("command error output", slog.String("stderr", stderr))
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		msg := fmt.Sprintf("download timed out after %s", s.timeout)
		log.Error(msg)
		return s.failed(id, url, msg, stderr)
	}
	if err != nil {
		log.Error("run command failed", slog.Any("error", err))
		return s.failed(id, url, fmt.Sprintf("unexpected error: %v", err), stderr)
	}
	if code != 0 {
		msg := fmt.Sprintf("download failed with return code %d", code)
		if trimmed := strings.TrimSpace(stderr); trimmed != "" {
			msg += ": " + trimmed
		}
		log.Error(msg)
		return s.failed(id, url, msg, stderr)
	}

	produced, err := findAudio(tempDir)
	if err != nil {
		log.Error("locate audio failed", slog.Any("error", err))
		return s.failed(id, url, err.Error(), stderr)
	}
	final := filepath.Join(s.dir, fmt.Sprintf("space_%s.m4a", id))
	if err := os.Rename(produced, final); err != nil {
		log.Error("move audio failed", slog.Any("error", err))
		return s.failed(id, url, fmt.Sprintf("unexpected error: %v", err), stderr)
	}
	log.Info("download completed", slog.String("file_path", final))
	return Result{
		Status:      StatusCompleted,
		DownloadID:  id,
		FilePath:    final,
		SpaceURL:    url,
		CompletedAt: s.now(),
	}
}

// findAudio returns the .m4a file twspace_dl left in dir, preferring
// download.m4a when several exist.
func findAudio(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.m4a"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", errors.New("download produced no audio file")
	}
	sort.Strings(matches)
	for _, m := range matches {
		if filepath.Base(m) == "download.m4a" {
			return m, nil
		}
	}
	return matches[0], nil
}

func (s *Service) failed(id, url, msg, stderr string) Result {
	return Result{
		Status:      StatusFailed,
		DownloadID:  id,
		SpaceURL:    url,
		Error:       msg,
		Stderr:      stderr,
		CompletedAt: s.now(),
	}
}

// Start runs a download in the background and returns its running record.
func (s *Service) Start(ctx context.Context, url string) (Record, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Record{}, ErrInvalidURL
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return Record{}, ErrServiceDown
	}
	rec := &Record{
		ID:        s.newID(),
		URL:       url,
		Status:    StatusRunning,
		StartedAt: s.now(),
	}
	s.records[rec.ID] = rec
	snapshot := *rec
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		result := s.Execute(s.ctx, rec.URL, rec.ID)
		s.mu.Lock()
		rec.Status = result.Status
		rec.Result = &result
		s.mu.Unlock()
	}()
	return snapshot, nil
}

// Get returns a copy of the record for id.
func (s *Service) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return *rec, nil
}

// List returns all records, newest first.
func (s *Service) List() []Record {
	s.mu.RLock()
	items := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		items = append(items, *rec)
	}
	s.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool {
		if items[i].StartedAt.Equal(items[j].StartedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].StartedAt.After(items[j].StartedAt)
	})
	return items
}

// Prune drops finished records completed longer than the retention period
// before now. Audio files are left in place.
func (s *Service) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.records {
		if !rec.Finished() || rec.Result == nil {
			continue
		}
		if now.Sub(rec.Result.CompletedAt) > s.retention {
			delete(s.records, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("pruned download records", slog.Int("removed", removed))
	}
	return removed
}

// Stop cancels running downloads and waits for them to finish or for ctx to
// expire.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
