package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/eargollo/piifinder/internal/config"
	"github.com/eargollo/piifinder/internal/db"
	"github.com/eargollo/piifinder/internal/hits"
	"github.com/eargollo/piifinder/internal/progress"
	"github.com/eargollo/piifinder/internal/report"
	"github.com/eargollo/piifinder/internal/scan"
)

var (
	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow)
	colorCyan   = color.New(color.FgCyan)
)

var scanFlags struct {
	report      string
	format      string
	workers     int
	dbPath      string
	maxFileSize string
}

var scanCmd = &cobra.Command{
	Use:   "scan [root...]",
	Short: "Scan directory trees and write a report",
	Long: `Walks every root (or scan_paths from the config file when no root is
given), writes the report and its error log, and prints a summary.
The report goes to --report, or to a timestamped file in report_dir.`,
	RunE: runScan,
}

func init() {
	f := scanCmd.Flags()
	f.StringVarP(&scanFlags.report, "report", "o", "", "report file path")
	f.StringVar(&scanFlags.format, "format", "", "report format: text or json")
	f.IntVarP(&scanFlags.workers, "workers", "w", 0, "files processed concurrently")
	f.StringVar(&scanFlags.dbPath, "db", "", "also store the run in this SQLite results database")
	f.StringVar(&scanFlags.maxFileSize, "max-file-size", "", "skip files larger than this, e.g. 200MB")
	rootCmd.AddCommand(scanCmd)
}

// applyScanFlags lets explicitly set flags override the config file.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format = scanFlags.format
	}
	if flags.Changed("workers") {
		cfg.Workers = scanFlags.workers
	}
	if flags.Changed("db") {
		cfg.DBPath = scanFlags.dbPath
	}
	if flags.Changed("max-file-size") {
		cfg.MaxFileSize = scanFlags.maxFileSize
	}
	return cfg.Validate()
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyScanFlags(cmd, cfg); err != nil {
		return err
	}

	roots := args
	if len(roots) == 0 {
		roots = cfg.ScanPaths
	}
	if len(roots) == 0 {
		return errors.New("no root given: pass a directory or set scan_paths in the config file")
	}

	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	scanner, err := newScanner(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prog := &scan.Progress{}
	indicator := progress.New(os.Stderr, prog.Load)
	indicator.Start()
	setLogOutput(progress.LogOutput(indicator, os.Stderr))
	res, runErr := scanner.Scan(ctx, "cli", roots, prog)
	indicator.NotifyDone()
	setLogOutput(os.Stderr)

	if res.Status == scan.StatusFailed {
		return runErr
	}

	reportPath := scanFlags.report
	if reportPath == "" {
		reportPath = report.TimestampedPath(cfg.ReportDir, format, res.StartedAt)
	}
	logPath, err := report.WriteFiles(reportPath, format, report.Meta{
		CreatedAt: time.Now(),
		Elapsed:   res.Elapsed(),
		Roots:     res.Roots,
	}, res.Snapshot)
	if err != nil {
		return err
	}

	if cfg.DBPath != "" {
		if err := saveToDB(context.WithoutCancel(ctx), cfg.DBPath, res); err != nil {
			return err
		}
	}

	printSummary(cmd.OutOrStdout(), res, reportPath, logPath)
	return runErr
}

// saveToDB stores res in the results database at path.
func saveToDB(ctx context.Context, path string, res *scan.Result) error {
	database, err := db.Open(path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(ctx, database); err != nil {
		return err
	}
	if err := scan.SaveRun(ctx, database, res, scan.DefaultConfig().BatchSize); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	slog.Debug("run stored", "id", res.ID, "db", path)
	return nil
}

var categoryLabels = map[hits.Category]string{
	hits.Email:         "email addresses",
	hits.IDNumber:      "id numbers",
	hits.CardNumber:    "card numbers",
	hits.PersonName:    "person names",
	hits.GPSCoordinate: "gps coordinates",
}

func printSummary(w io.Writer, res *scan.Result, reportPath, logPath string) {
	status := colorGreen
	if res.Status != scan.StatusCompleted {
		status = colorYellow
	}
	status.Fprintf(w, "Scan %s", res.Status)
	fmt.Fprintf(w, " in %s: %s files, %s read\n",
		res.Elapsed().Round(time.Millisecond),
		humanize.Comma(res.Counts.FilesProcessed),
		humanize.Bytes(uint64(res.Counts.BytesRead)))

	for _, cat := range hits.Categories {
		fmt.Fprintf(w, "  %-16s ", categoryLabels[cat])
		colorCyan.Fprintf(w, "%d\n", res.Snapshot.Count(cat))
	}

	if n := len(res.Snapshot.Errors()); n > 0 {
		colorRed.Fprintf(w, "  %d files could not be read", n)
		fmt.Fprintf(w, " (see %s)\n", logPath)
	}
	fmt.Fprintf(w, "Report: %s\n", reportPath)
}
