package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eargollo/piifinder/internal/api"
	"github.com/eargollo/piifinder/internal/db"
	"github.com/eargollo/piifinder/internal/report"
	"github.com/eargollo/piifinder/internal/scan"
	"github.com/eargollo/piifinder/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled scans and serve the status API",
	Long: `Scans scan_paths on the configured cron schedule and on demand over HTTP.
Every run writes a timestamped report into report_dir.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.ScanPaths) == 0 {
		return errors.New("serve: scan_paths is empty")
	}
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	scanner, err := newScanner(cfg)
	if err != nil {
		return err
	}

	slog.Info("piifinder starting",
		"version", version,
		"log_level", cfg.LogLevel,
		"http_addr", cfg.HTTPAddr,
		"db_path", cfg.DBPath,
		"scan_paths", cfg.ScanPaths)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Database (optional) ────────────────────────────────────────────────
	var database *sql.DB
	if cfg.DBPath != "" {
		database, err = db.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.RunMigrations(ctx, database); err != nil {
			return err
		}
		// Runs still 'running' were interrupted by a previous process exit.
		if err := scan.MarkStaleRunsFailed(database); err != nil {
			slog.Warn("mark stale runs", "error", err)
		}
	}

	// ── Scan manager ───────────────────────────────────────────────────────
	writeReport := func(_ context.Context, res *scan.Result) {
		if res.Status == scan.StatusFailed {
			return
		}
		path := report.TimestampedPath(cfg.ReportDir, format, res.StartedAt)
		meta := report.Meta{CreatedAt: time.Now(), Elapsed: res.Elapsed(), Roots: res.Roots}
		if _, err := report.WriteFiles(path, format, meta, res.Snapshot); err != nil {
			slog.Error("write report", "id", res.ID, "error", err)
			return
		}
		slog.Info("report written", "id", res.ID, "path", path)
	}
	mgr := scan.NewManager(scanner, database, cfg.ScanPaths, writeReport)

	// ── Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.New()
	sched.SetPaused(cfg.ScanPaused)
	if cfg.Schedule != "" {
		if err := sched.SetScanJob(ctx, cfg.Schedule, mgr); err != nil {
			slog.Warn("invalid cron expression", "expr", cfg.Schedule, "error", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	// ── HTTP server ────────────────────────────────────────────────────────
	srv := api.New(ctx, cfg.HTTPAddr, database, mgr, sched, version)
	err = srv.Run(ctx)

	// ctx parents every scan, so a running one is already cancelled here.
	mgr.Wait()
	if err != nil {
		return err
	}
	slog.Info("piifinder stopped")
	return nil
}
