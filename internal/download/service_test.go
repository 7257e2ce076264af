package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linerelay/linerelay/internal/config"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	dirs    []string
	output  string // file name written into the work dir on success
	stderr  string
	code    int
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.dirs = append(f.dirs, dir)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", "", -1, nil
		}
	}
	if f.err != nil {
		return "", "", -1, f.err
	}
	if f.code == 0 && f.output != "" {
		if err := os.WriteFile(filepath.Join(dir, f.output), []byte("audio"), 0o644); err != nil {
			return "", "", -1, err
		}
	}
	return "ok", f.stderr, f.code, nil
}

func newTestService(t *testing.T, runner Runner) (*Service, string) {
	t.Helper()
	root := t.TempDir()
	cookies := filepath.Join(root, "cookies.txt")
	require.NoError(t, os.WriteFile(cookies, []byte("# cookies"), 0o600))
	cfg := config.DownloadConfig{
		Dir:            filepath.Join(root, "downloads"),
		CookiesPath:    cookies,
		Command:        "twspace_dl",
		TimeoutSeconds: 5,
		Retention:      "1h",
	}
	return NewService(nil, cfg, runner), root
}

func TestExecuteCompleted(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: "download.m4a"}
	svc, root := newTestService(t, runner)

	res := svc.Execute(context.Background(), "https://x.com/i/spaces/1", "abc")
	require.Equal(t, StatusCompleted, res.Status, res.Error)
	assert.Equal(t, "abc", res.DownloadID)
	assert.Equal(t, "https://x.com/i/spaces/1", res.SpaceURL)
	assert.Equal(t, filepath.Join(root, "downloads", "space_abc.m4a"), res.FilePath)
	assert.FileExists(t, res.FilePath)
	assert.NoDirExists(t, filepath.Join(root, "downloads", "temp_abc"))

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"twspace_dl", "-i", "https://x.com/i/spaces/1", "-c", filepath.Join(root, "cookies.txt")}, runner.calls[0])
	assert.Equal(t, filepath.Join(root, "downloads", "temp_abc"), runner.dirs[0])
}

func TestExecuteFindsOtherAudioNames(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &fakeRunner{output: "Space title-1234.m4a"})
	res := svc.Execute(context.Background(), "https://x.com/i/spaces/2", "id2")
	require.Equal(t, StatusCompleted, res.Status, res.Error)
	assert.FileExists(t, res.FilePath)
}

func TestExecuteFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		runner  *fakeRunner
		wantErr string
	}{
		{
			name:    "non-zero exit with stderr",
			runner:  &fakeRunner{code: 2, stderr: "space ended\n"},
			wantErr: "download failed with return code 2: space ended",
		},
		{
			name:    "non-zero exit without stderr",
			runner:  &fakeRunner{code: 1},
			wantErr: "download failed with return code 1",
		},
		{
			name:    "command missing",
			runner:  &fakeRunner{err: errors.New("executable file not found")},
			wantErr: "unexpected error: executable file not found",
		},
		{
			name:    "no audio produced",
			runner:  &fakeRunner{},
			wantErr: "download produced no audio file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, root := newTestService(t, tt.runner)
			res := svc.Execute(context.Background(), "https://x.com/i/spaces/3", "f")
			assert.Equal(t, StatusFailed, res.Status)
			assert.Equal(t, tt.wantErr, res.Error)
			assert.False(t, res.CompletedAt.IsZero())
			assert.NoDirExists(t, filepath.Join(root, "downloads", "temp_f"))
		})
	}
}

func TestExecuteMissingCookies(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: "download.m4a"}
	root := t.TempDir()
	svc := NewService(nil, config.DownloadConfig{
		Dir:            filepath.Join(root, "downloads"),
		CookiesPath:    filepath.Join(root, "missing.txt"),
		Command:        "twspace_dl",
		TimeoutSeconds: 5,
	}, runner)

	res := svc.Execute(context.Background(), "https://x.com/i/spaces/4", "c")
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "cookies file not found", res.Error)
	assert.Empty(t, runner.calls)
}

func TestStartGetListPrune(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: "download.m4a", block: make(chan struct{}), started: make(chan struct{}, 1)}
	svc, _ := newTestService(t, runner)

	_, err := svc.Start(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidURL)

	rec, err := svc.Start(context.Background(), "https://x.com/i/spaces/5")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, rec.Status)
	<-runner.started

	got, err := svc.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, 0, svc.Prune(time.Now().Add(48*time.Hour)))

	close(runner.block)
	require.Eventually(t, func() bool {
		r, _ := svc.Get(rec.ID)
		return r.Finished()
	}, 2*time.Second, 10*time.Millisecond)

	got, _ = svc.Get(rec.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.FileExists(t, got.Result.FilePath)
	assert.Len(t, svc.List(), 1)

	_, err = svc.Get("unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 0, svc.Prune(time.Now()))
	assert.Equal(t, 1, svc.Prune(time.Now().Add(2*time.Hour)))
	assert.Empty(t, svc.List())
}

func TestStopCancelsRunning(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	svc, _ := newTestService(t, runner)

	rec, err := svc.Start(context.Background(), "https://x.com/i/spaces/6")
	require.NoError(t, err)
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Stop(ctx))

	got, _ := svc.Get(rec.ID)
	assert.Equal(t, StatusFailed, got.Status)

	_, err = svc.Start(context.Background(), "https://x.com/i/spaces/7")
	assert.ErrorIs(t, err, ErrServiceDown)
}
