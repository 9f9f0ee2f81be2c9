// Package sweeper periodically removes sessions that have not been played
// within the retention period.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// stopTimeout bounds how long Stop waits for a running sweep.
const stopTimeout = 5 * time.Second

// Purger clears groups last written before cutoff.
type Purger interface {
	PurgeStale(ctx context.Context, cutoff time.Time) (int, error)
}

// Sweeper runs PurgeStale on a cron schedule.
type Sweeper struct {
	purger    Purger
	retention time.Duration
	schedule  string
	now       func() time.Time
	logger    *slog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	stopCh chan struct{}
}

// New creates a sweeper. A non-positive retention disables it.
func New(p Purger, retention time.Duration, schedule string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		purger:    p,
		retention: retention,
		schedule:  schedule,
		now:       time.Now,
		logger:    logger,
	}
}

// ValidateSchedule reports whether expr is a standard cron expression or descriptor.
func ValidateSchedule(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", expr, err)
	}
	return nil
}

// Start schedules the sweep. It stops on its own when ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.retention <= 0 {
		s.logger.Info("Session sweeper disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger}), cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(runCtx); err != nil {
			s.logger.Error("Session sweep failed", "error", err)
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("schedule sweep %q: %w", s.schedule, err)
	}

	stopCh := make(chan struct{})
	s.cron = c
	s.cancel = cancel
	s.stopCh = stopCh
	c.Start()
	s.logger.Info("Session sweeper started", "schedule", s.schedule, "retention", s.retention)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopCh:
		}
	}()
	return nil
}

// RunOnce purges every group idle for longer than the retention period.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.purger.PurgeStale(ctx, cutoff)
	if n > 0 {
		s.logger.Info("Stale sessions purged", "count", n, "cutoff", cutoff)
	}
	return n, err
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c, cancel, stopCh := s.cron, s.cancel, s.stopCh
	s.cron, s.cancel, s.stopCh = nil, nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	close(stopCh)
	cancel()

	select {
	case <-c.Stop().Done():
	case <-time.After(stopTimeout):
		s.logger.Warn("Session sweeper stop timed out waiting for running sweep")
	}
	s.logger.Info("Session sweeper stopped")
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
