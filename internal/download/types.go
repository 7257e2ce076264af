// Package download fetches Twitter/X Spaces audio with the twspace_dl tool
// and tracks the outcome of each download.
package download

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a download.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrNotFound    = errors.New("download not found")
	ErrInvalidURL  = errors.New("space url is required")
	ErrServiceDown = errors.New("download service stopped")
)

// Result is the outcome of one finished download.
type Result struct {
	Status      Status    `json:"status"`
	DownloadID  string    `json:"download_id"`
	FilePath    string    `json:"file_path,omitempty"`
	SpaceURL    string    `json:"space_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	Stderr      string    `json:"stderr,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Record tracks an asynchronous download started through Service.Start.
type Record struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Result    *Result   `json:"result,omitempty"`
}

// Finished reports whether the download has left the running state.
func (r Record) Finished() bool {
	return r.Status != StatusRunning
}

// Runner runs an external command in dir and reports its output and exit code.
// A non-zero exit is not an error; err is set only when the command could not
// be run at all.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr string, exitCode int, err error)
}
