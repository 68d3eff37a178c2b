// Package config loads the YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration loaded from config.yaml.
type Config struct {
	ScanPaths    []string `yaml:"scan_paths"    json:"scan_paths"`
	ExcludePaths []string `yaml:"exclude_paths" json:"exclude_paths"`
	ReportDir    string   `yaml:"report_dir"    json:"report_dir"`
	Format       string   `yaml:"format"        json:"format"`
	Schedule     string   `yaml:"schedule"      json:"schedule"`
	ScanPaused   bool     `yaml:"scan_paused"   json:"scan_paused"`
	DBPath       string   `yaml:"db_path"       json:"-"`
	HTTPAddr     string   `yaml:"http_addr"     json:"-"`
	Workers      int      `yaml:"workers"       json:"workers"`
	Walkers      int      `yaml:"walkers"       json:"walkers"`
	// MaxFileSize is a human-readable size such as "200MB". Empty or "0"
	// means no limit.
	MaxFileSize string   `yaml:"max_file_size" json:"max_file_size"`
	LogLevel    string   `yaml:"log_level"     json:"-"`
	NLP         NLP      `yaml:"nlp"           json:"nlp"`
	Patterns    Patterns `yaml:"patterns"      json:"patterns"`
}

// NLP configures person-name recognition.
type NLP struct {
	// SidecarURL is the base URL of the NER sidecar. Empty disables name
	// recognition.
	SidecarURL string        `yaml:"sidecar_url" json:"sidecar_url"`
	Timeout    time.Duration `yaml:"timeout"     json:"timeout"`
}

// Patterns extends the built-in pattern library.
type Patterns struct {
	// ExtraIDNumbers are additional regular expressions reported as id
	// numbers.
	ExtraIDNumbers []string `yaml:"extra_id_numbers" json:"extra_id_numbers"`
}

// applyDefaults fills zero/empty fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.ReportDir == "" {
		c.ReportDir = "reports"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Schedule == "" {
		c.Schedule = "0 2 * * 0"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.Walkers == 0 {
		c.Walkers = 2
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.NLP.Timeout == 0 {
		c.NLP.Timeout = 30 * time.Second
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("format: unknown value %q (want text or json)", c.Format)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers: must be positive, got %d", c.Workers)
	}
	if c.Walkers < 0 {
		return fmt.Errorf("walkers: must be positive, got %d", c.Walkers)
	}
	if _, err := c.MaxFileSizeBytes(); err != nil {
		return err
	}
	return nil
}

// MaxFileSizeBytes parses MaxFileSize. It returns 0 when no limit is set.
func (c *Config) MaxFileSizeBytes() (int64, error) {
	s := strings.TrimSpace(c.MaxFileSize)
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("max_file_size: %w", err)
	}
	return int64(n), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns a default Config so the scanner
// can run without a config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return &cfg, nil
}
