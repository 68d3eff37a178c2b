// Package scheduler triggers scans on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eargollo/piifinder/internal/scan"
)

// Starter starts an asynchronous scan. *scan.Manager implements it.
type Starter interface {
	Start(ctx context.Context, triggeredBy string) (*scan.ActiveScan, error)
}

// Scheduler wraps robfig/cron and tracks the next scheduled run.
type Scheduler struct {
	mu       sync.RWMutex
	c        *cron.Cron
	entryID  cron.EntryID
	cronExpr string
	paused   bool
}

// New creates a stopped Scheduler. Call Start to activate it.
func New() *Scheduler {
	return &Scheduler{
		c: cron.New(),
	}
}

// SetJob replaces the current cron job with the given expression and callback.
// If the scheduler is already running, the new job takes effect immediately.
func (s *Scheduler) SetJob(expr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.c.AddFunc(expr, fn)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if s.entryID != 0 {
		s.c.Remove(s.entryID)
	}
	s.entryID = id
	s.cronExpr = expr
	slog.Info("scheduler: job set", "cron", expr)
	return nil
}

// SetScanJob schedules scans through starter. Ticks are skipped while the
// scheduler is paused or a scan is already running.
func (s *Scheduler) SetScanJob(ctx context.Context, expr string, starter Starter) error {
	return s.SetJob(expr, func() { s.trigger(ctx, starter) })
}

func (s *Scheduler) trigger(ctx context.Context, starter Starter) {
	if s.Paused() {
		slog.Info("scheduler: paused, skipping scan")
		return
	}
	active, err := starter.Start(ctx, "schedule")
	switch {
	case errors.Is(err, scan.ErrAlreadyRunning):
		slog.Info("scheduler: scan already running, skipping")
	case err != nil:
		slog.Error("scheduler: start scan", "error", err)
	default:
		slog.Info("scheduler: scan started", "id", active.ID)
	}
}

// SetPaused pauses or resumes scheduled scans.
func (s *Scheduler) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

// Paused reports whether scheduled scans are paused.
func (s *Scheduler) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the cron loop and waits for a running job callback to return.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// NextRunAt returns the next scheduled time, or nil if no job is set or the
// cron loop has not started.
func (s *Scheduler) NextRunAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entryID == 0 {
		return nil
	}
	entry := s.c.Entry(s.entryID)
	if entry.ID == 0 || entry.Next.IsZero() {
		return nil
	}
	t := entry.Next
	return &t
}

// CronExpr returns the current cron expression.
func (s *Scheduler) CronExpr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cronExpr
}
