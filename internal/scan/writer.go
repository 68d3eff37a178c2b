package scan

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/eargollo/piifinder/internal/hits"
)

// RunRecord is one row of scan_runs. It carries counts only, never hit
// values.
type RunRecord struct {
	ID              string     `json:"id"`
	TriggeredBy     string     `json:"triggered_by"`
	Roots           []string   `json:"roots"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	DurationMs      *int64     `json:"duration_ms,omitempty"`
	FilesDiscovered int64      `json:"files_discovered"`
	FilesProcessed  int64      `json:"files_processed"`
	HitCount        int64      `json:"hit_count"`
	ErrorCount      int64      `json:"error_count"`
	BytesRead       int64      `json:"bytes_read"`
	Error           string     `json:"error,omitempty"`
}

// SaveRun stores a finished run, its hits and its errors.
func SaveRun(ctx context.Context, db *sql.DB, res *Result, batchSize int) error {
	if err := InsertRun(ctx, db, res); err != nil {
		return err
	}
	return FinishRun(ctx, db, res, batchSize)
}

// InsertRun creates the scan_runs row for res in the running state.
func InsertRun(ctx context.Context, db *sql.DB, res *Result) error {
	roots, err := json.Marshal(res.Roots)
	if err != nil {
		return fmt.Errorf("encode roots: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO scan_runs (id, triggered_by, roots, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		res.ID, res.TriggeredBy, string(roots), StatusRunning, res.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert run %s: %w", res.ID, err)
	}
	return nil
}

// FinishRun writes the snapshot of res in batched transactions, then
// records its final status and counts.
func FinishRun(ctx context.Context, db *sql.DB, res *Result, batchSize int) error {
	if batchSize < 1 {
		batchSize = DefaultConfig().BatchSize
	}

	all := res.Snapshot.All()
	for i := 0; i < len(all); i += batchSize {
		end := min(i+batchSize, len(all))
		if err := writeHitBatch(ctx, db, res.ID, all[i:end]); err != nil {
			return err
		}
	}

	errs := res.Snapshot.Errors()
	for i := 0; i < len(errs); i += batchSize {
		end := min(i+batchSize, len(errs))
		if err := writeErrorBatch(ctx, db, res.ID, errs[i:end]); err != nil {
			return err
		}
	}

	var errText sql.NullString
	if res.Err != nil {
		errText = sql.NullString{String: res.Err.Error(), Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		UPDATE scan_runs
		SET status           = ?,
		    finished_at      = ?,
		    duration_ms      = ?,
		    files_discovered = ?,
		    files_processed  = ?,
		    hit_count        = ?,
		    error_count      = ?,
		    bytes_read       = ?,
		    error            = ?
		WHERE id = ?`,
		res.Status,
		res.FinishedAt.Unix(),
		res.Elapsed().Milliseconds(),
		res.Counts.FilesDiscovered,
		res.Counts.FilesProcessed,
		res.Snapshot.Total(),
		len(errs),
		res.Counts.BytesRead,
		errText,
		res.ID)
	if err != nil {
		return fmt.Errorf("finalise run %s: %w", res.ID, err)
	}
	return nil
}

// writeHitBatch inserts a slice of hits within a single transaction,
// reusing one prepared statement.
func writeHitBatch(ctx context.Context, db *sql.DB, runID string, batch []hits.Hit) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO hits (run_id, category, value, path)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert_hit: %w", err)
	}
	defer stmt.Close()

	for _, h := range batch {
		if _, err := stmt.ExecContext(ctx, runID, string(h.Category), h.Value, h.Path); err != nil {
			return fmt.Errorf("insert hit %s: %w", h.Path, err)
		}
	}
	return tx.Commit()
}

func writeErrorBatch(ctx context.Context, db *sql.DB, runID string, batch []hits.ErrorRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO scan_errors (run_id, message, path)
		VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert_error: %w", err)
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.ExecContext(ctx, runID, e.Message, e.Path); err != nil {
			return fmt.Errorf("insert error %s: %w", e.Path, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns up to limit runs, newest first.
func ListRuns(ctx context.Context, db *sql.DB, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, triggered_by, roots, status, started_at, finished_at, duration_ms,
		       files_discovered, files_processed, hit_count, error_count, bytes_read,
		       COALESCE(error, '')
		FROM scan_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r          RunRecord
			roots      string
			startedAt  int64
			finishedAt sql.NullInt64
			durationMs sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.TriggeredBy, &roots, &r.Status, &startedAt, &finishedAt, &durationMs,
			&r.FilesDiscovered, &r.FilesProcessed, &r.HitCount, &r.ErrorCount, &r.BytesRead, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if err := json.Unmarshal([]byte(roots), &r.Roots); err != nil {
			return nil, fmt.Errorf("decode roots of run %s: %w", r.ID, err)
		}
		r.StartedAt = time.Unix(startedAt, 0)
		if finishedAt.Valid {
			t := time.Unix(finishedAt.Int64, 0)
			r.FinishedAt = &t
		}
		if durationMs.Valid {
			d := durationMs.Int64
			r.DurationMs = &d
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// progressReporter writes the live counters of a running scan to scan_runs
// every second until stop is closed.
func progressReporter(ctx context.Context, db *sql.DB, runID string, p *Progress, stop <-chan struct{}) {
	flush := func() {
		c := p.Load()
		_, err := db.ExecContext(ctx, `
			UPDATE scan_runs
			SET files_discovered = ?,
			    files_processed  = ?,
			    hit_count        = ?,
			    error_count      = ?,
			    bytes_read       = ?
			WHERE id = ? AND status = ?`,
			c.FilesDiscovered, c.FilesProcessed, c.Hits, c.Errors, c.BytesRead,
			runID, StatusRunning)
		if err != nil && ctx.Err() == nil {
			slog.Warn("progress reporter: update failed", "error", err)
		}
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			flush()
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
