// Package schedule runs periodic maintenance jobs on cron specs.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a maintenance task. now is the scheduled fire time.
type Job func(ctx context.Context, now time.Time)

type Service struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	names  map[string]cron.EntryID
}

func NewService(log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("service", "schedule"))
	cl := cronLogger{logger: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: log,
		ctx:    ctx,
		cancel: cancel,
		names:  map[string]cron.EntryID{},
	}
}

// Add registers job under name. Specs use the standard five-field format or
// descriptors such as "@every 10m".
func (s *Service) Add(name, spec string, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("schedule name is required")
	}
	if _, ok := s.names[name]; ok {
		return fmt.Errorf("schedule %q already registered", name)
	}
	id, err := s.cron.AddFunc(spec, func() {
		now := time.Now()
		s.logger.Debug("running job", slog.String("job", name))
		job(s.ctx, now)
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", name, err)
	}
	s.names[name] = id
	s.logger.Info("job registered", slog.String("job", name), slog.String("spec", spec))
	return nil
}

// Next returns the next fire time of the named job.
func (s *Service) Next(name string) (time.Time, bool) {
	id, ok := s.names[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Service) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx expires.
func (s *Service) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
