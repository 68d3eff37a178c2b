package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eargollo/piifinder/internal/config"
	"github.com/eargollo/piifinder/internal/detect"
	"github.com/eargollo/piifinder/internal/extract"
	"github.com/eargollo/piifinder/internal/nlp"
	"github.com/eargollo/piifinder/internal/patterns"
	"github.com/eargollo/piifinder/internal/scan"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

var (
	configPath string
	verbose    bool
	logLevel   = slog.LevelInfo
)

var rootCmd = &cobra.Command{
	Use:   "piifinder",
	Short: "Find personal data in file shares",
	Long: `piifinder walks directory trees and reports email addresses, id numbers,
payment card numbers, person names and image GPS tags found in documents,
spreadsheets, databases, images and plain files.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// loadConfig reads the config file and configures the default logger from
// it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logLevel = parseLogLevel(cfg.LogLevel)
	if verbose {
		logLevel = slog.LevelDebug
	}
	setLogOutput(os.Stderr)
	return cfg, nil
}

// setLogOutput points the default logger at w, keeping the configured level.
func setLogOutput(w io.Writer) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

// newScanner builds the scan pipeline described by cfg.
func newScanner(cfg *config.Config) (*scan.Scanner, error) {
	lib, err := patterns.WithIDNumbers(cfg.Patterns.ExtraIDNumbers)
	if err != nil {
		return nil, err
	}
	maxSize, err := cfg.MaxFileSizeBytes()
	if err != nil {
		return nil, err
	}

	ner := nlp.New(nlp.Config{
		SidecarURL: cfg.NLP.SidecarURL,
		Timeout:    cfg.NLP.Timeout,
	})

	scanCfg := scan.DefaultConfig()
	scanCfg.Workers = cfg.Workers
	scanCfg.Walkers = cfg.Walkers
	scanCfg.MaxFileSize = maxSize
	scanCfg.Excludes = cfg.ExcludePaths
	return scan.New(extract.Default(), detect.New(lib, ner), scanCfg), nil
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
