// Package scan walks directory trees and runs every file through the
// classify, extract and detect stages, collecting hits and per-file errors
// into a hits.Store.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eargollo/piifinder/internal/detect"
	"github.com/eargollo/piifinder/internal/extract"
	"github.com/eargollo/piifinder/internal/hits"
	"github.com/eargollo/piifinder/internal/media"
)

// Stage errors. The message of every ErrorRecord starts with the stage that
// failed.
var (
	ErrClassify = errors.New("classify")
	ErrExtract  = errors.New("extract")
	ErrScan     = errors.New("scan")

	// ErrRootUnreadable is returned by Run before any file is processed when
	// a root is missing, not a directory, or cannot be listed.
	ErrRootUnreadable = errors.New("root directory unreadable")

	// ErrFileTooLarge marks files skipped because of Config.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Config holds the pipeline tuning parameters.
type Config struct {
	// Workers is the number of files processed concurrently.
	Workers int
	// Walkers is the number of goroutines listing directories.
	Walkers int
	// MaxFileSize skips files larger than this many bytes. 0 disables it.
	MaxFileSize int64
	// Excludes lists paths that are never visited.
	Excludes []string
	// BatchSize is the number of rows per results-DB transaction.
	BatchSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:   1,
		Walkers:   2,
		BatchSize: 500,
	}
}

// Result describes one finished run.
type Result struct {
	ID          string
	TriggeredBy string
	Roots       []string
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      string
	Counts      Counts
	Snapshot    hits.Snapshot
	// Err is the error that ended the run early, if any.
	Err error
}

// Elapsed returns the wall-clock duration of the run.
func (r *Result) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Scanner orchestrates the per-file pipeline.
type Scanner struct {
	registry *extract.Registry
	detector *detect.Scanner
	cfg      Config
}

// New creates a Scanner.
func New(registry *extract.Registry, detector *detect.Scanner, cfg Config) *Scanner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Walkers < 1 {
		cfg.Walkers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Scanner{registry: registry, detector: detector, cfg: cfg}
}

// Scan runs a complete walk over roots with a fresh store and returns the
// result. An unreadable root fails the run before any file is read; a
// cancelled context yields a cancelled result holding whatever was found.
func (s *Scanner) Scan(ctx context.Context, triggeredBy string, roots []string, progress *Progress) (*Result, error) {
	res := &Result{
		ID:          uuid.NewString(),
		TriggeredBy: triggeredBy,
		Roots:       roots,
		StartedAt:   time.Now(),
	}
	return res, s.execute(ctx, res, progress)
}

// execute runs the pipeline for res and fills in its outcome.
func (s *Scanner) execute(ctx context.Context, res *Result, progress *Progress) error {
	slog.Info("scan started", "id", res.ID, "triggered_by", res.TriggeredBy, "roots", res.Roots)

	store := hits.NewStore()
	runErr := s.Run(ctx, res.Roots, store, progress)

	res.Status = StatusCompleted
	switch {
	case ctx.Err() != nil:
		res.Status = StatusCancelled
		if runErr == nil {
			runErr = ctx.Err()
		}
	case runErr != nil:
		res.Status = StatusFailed
	}
	res.FinishedAt = time.Now()
	res.Counts = progress.Load()
	res.Snapshot = store.Snapshot()
	res.Err = runErr

	slog.Info("scan finished", "id", res.ID, "status", res.Status,
		"files_processed", res.Counts.FilesProcessed,
		"hits", res.Counts.Hits,
		"errors", res.Counts.Errors,
		"elapsed", res.Elapsed().Round(time.Millisecond))
	return runErr
}

// Run verifies every root, then walks them and processes each file into
// store. Per-file failures become ErrorRecords and never stop the walk.
func (s *Scanner) Run(ctx context.Context, roots []string, store *hits.Store, progress *Progress) error {
	if len(roots) == 0 {
		return fmt.Errorf("%w: no root given", ErrRootUnreadable)
	}
	for _, root := range roots {
		if err := checkRoot(root); err != nil {
			return err
		}
	}

	excludes := make(map[string]struct{}, len(s.cfg.Excludes))
	for _, p := range s.cfg.Excludes {
		excludes[filepath.Clean(p)] = struct{}{}
	}

	report := newErrorReporter(ctx, store, progress)

	const bufSize = 256
	walkOut := make(chan FileInfo, bufSize)
	gated := make(chan FileInfo, bufSize)
	queued := make(chan FileInfo, bufSize)

	// Start pipeline stages (each manages its own goroutine(s)).
	go Walk(ctx, roots, excludes, s.cfg.Walkers, walkOut, report)
	RunSizeGate(ctx, progress, s.cfg.MaxFileSize, report, walkOut, gated)
	RunCostPriorityQueue(ctx, gated, queued)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range queued {
				if ctx.Err() != nil {
					continue
				}
				s.processFile(ctx, f, store, progress, report)
			}
		}()
	}
	wg.Wait()

	// Unblock the walker if a stage stopped early on cancellation.
	for range walkOut {
	}
	return ctx.Err()
}

// checkRoot fails unless root is a directory whose entries can be listed.
func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrRootUnreadable, root)
	}
	f, err := os.Open(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}
	defer f.Close()
	if _, err := f.ReadDir(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}
	return nil
}

// processFile classifies, extracts and scans one file. It reports at most
// one error for the file; hits found before a scan-stage failure are kept.
func (s *Scanner) processFile(ctx context.Context, f FileInfo, store *hits.Store, progress *Progress, report ErrorReporter) {
	defer progress.FilesProcessed.Add(1)

	mime, err := media.Classify(f.Path)
	if err != nil {
		report(f.Path, ErrClassify.Error(), err.Error())
		return
	}

	doc, err := s.registry.Extract(ctx, mime, f.Path)
	if err != nil {
		report(f.Path, ErrExtract.Error(), err.Error())
		return
	}
	progress.BytesRead.Add(f.Size)

	found, err := s.findHits(ctx, doc, f.Path)
	if n := store.AddAll(found); n > 0 {
		progress.Hits.Add(int64(n))
	}
	if err != nil {
		report(f.Path, ErrScan.Error(), err.Error())
	}
}

func (s *Scanner) findHits(ctx context.Context, doc *extract.Document, path string) ([]hits.Hit, error) {
	switch {
	case doc.Empty():
		return nil, nil
	case doc.GPS != nil:
		return detect.ScanGPS(doc.GPS, path), nil
	case doc.Raw != nil:
		return s.detector.ScanRaw(ctx, doc.Raw, doc.Text, path)
	default:
		return s.detector.ScanText(ctx, doc.Text, path)
	}
}

// newErrorReporter returns the ErrorReporter for one run. Errors raised
// after cancellation are side effects of the cancel and are dropped.
func newErrorReporter(ctx context.Context, store *hits.Store, progress *Progress) ErrorReporter {
	return func(path, stage, errMsg string) {
		if ctx.Err() != nil {
			return
		}
		progress.Errors.Add(1)
		slog.Warn("scan error", "path", path, "stage", stage, "error", errMsg)
		store.AddError(hits.ErrorRecord{Message: stage + ": " + errMsg, Path: path})
	}
}
