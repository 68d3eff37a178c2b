package scan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyRunning is returned when a scan is started while one is in progress.
var ErrAlreadyRunning = errors.New("a scan is already in progress")

// ErrNoActiveScan is returned when cancel is called with no scan running.
var ErrNoActiveScan = errors.New("no scan is currently running")

// ActiveScan holds live information about the running scan.
type ActiveScan struct {
	ID          string
	StartedAt   time.Time
	TriggeredBy string
	Roots       []string
	Progress    *Progress
}

// FinishFunc is called once per run after it ends, whatever its status.
type FinishFunc func(ctx context.Context, res *Result)

// Manager enforces a single-active-scan invariant and exposes start/cancel.
// It is safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	scanner   *Scanner
	db        *sql.DB // nil disables persistence
	roots     []string
	batchSize int
	onFinish  FinishFunc

	active   *ActiveScan
	cancelFn context.CancelFunc
	done     chan struct{}
	last     *Result
}

// NewManager creates a Manager. db may be nil; onFinish may be nil.
func NewManager(scanner *Scanner, db *sql.DB, roots []string, onFinish FinishFunc) *Manager {
	return &Manager{
		scanner:   scanner,
		db:        db,
		roots:     roots,
		batchSize: scanner.cfg.BatchSize,
		onFinish:  onFinish,
	}
}

// Start launches an asynchronous scan. Returns an ActiveScan snapshot or
// ErrAlreadyRunning if a scan is already in progress. Cancelling parentCtx
// cancels the scan (e.g. on server shutdown).
func (m *Manager) Start(parentCtx context.Context, triggeredBy string) (*ActiveScan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, ErrAlreadyRunning
	}

	res := &Result{
		ID:          uuid.NewString(),
		TriggeredBy: triggeredBy,
		Roots:       m.roots,
		StartedAt:   time.Now(),
	}

	// Create the scan_runs row NOW so the run is listed immediately, before
	// the goroutine begins executing.
	if m.db != nil {
		if err := InsertRun(parentCtx, m.db, res); err != nil {
			return nil, fmt.Errorf("create run record: %w", err)
		}
	}

	progress := &Progress{}
	scanCtx, cancel := context.WithCancel(parentCtx)

	active := &ActiveScan{
		ID:          res.ID,
		StartedAt:   res.StartedAt,
		TriggeredBy: triggeredBy,
		Roots:       res.Roots,
		Progress:    progress,
	}
	m.active = active
	m.cancelFn = cancel
	m.done = make(chan struct{})
	done := m.done

	go func() {
		defer close(done)
		defer cancel()
		m.run(scanCtx, res, progress)

		m.mu.Lock()
		m.active = nil
		m.cancelFn = nil
		m.last = res
		m.mu.Unlock()
	}()

	return active, nil
}

// run executes one scan and persists and reports its result.
func (m *Manager) run(ctx context.Context, res *Result, progress *Progress) {
	if m.db != nil {
		stop := make(chan struct{})
		go progressReporter(ctx, m.db, res.ID, progress, stop)
		defer close(stop)
	}

	if err := m.scanner.execute(ctx, res, progress); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("scan run error", "id", res.ID, "error", err)
	}

	// Results are kept for cancelled runs too, so persist outside ctx.
	finishCtx := context.WithoutCancel(ctx)
	if m.db != nil {
		if err := FinishRun(finishCtx, m.db, res, m.batchSize); err != nil {
			slog.Error("finalise run record", "id", res.ID, "error", err)
		}
	}
	if m.onFinish != nil {
		m.onFinish(finishCtx, res)
	}
}

// Cancel stops the currently running scan. Returns ErrNoActiveScan if idle.
func (m *Manager) Cancel() (*ActiveScan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNoActiveScan
	}

	snap := *m.active
	m.cancelFn()
	return &snap, nil
}

// ActiveScan returns a snapshot of the running scan, or nil when idle.
func (m *Manager) ActiveScan() *ActiveScan {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	snap := *m.active
	return &snap
}

// LastResult returns the most recently finished run, or nil.
func (m *Manager) LastResult() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Wait blocks until the running scan, if any, has finished.
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

// MarkStaleRunsFailed marks any scan_runs rows still in the running state
// as failed. It is called once at startup in case a previous server process
// crashed mid-scan.
func MarkStaleRunsFailed(db *sql.DB) error {
	res, err := db.Exec(`
		UPDATE scan_runs
		SET status = ?, finished_at = ?, error = 'interrupted'
		WHERE status = ?`,
		StatusFailed, time.Now().Unix(), StatusRunning)
	if err != nil {
		return fmt.Errorf("mark stale runs failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Warn("marked stale runs as failed", "count", n)
	}
	return nil
}
