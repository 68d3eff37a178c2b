package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eargollo/piifinder/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "scan_paths:\n  - /tmp/test\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"/tmp/test"}, cfg.ScanPaths)
	assert.Equal(t, "0 2 * * 0", cfg.Schedule)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.NLP.Timeout)
	assert.Empty(t, cfg.DBPath)
}

func TestLoad_AllKeys(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
scan_paths: [/srv/share]
exclude_paths: [/srv/share/tmp]
report_dir: /var/reports
format: json
schedule: "*/30 * * * *"
scan_paused: true
db_path: /var/lib/piifinder.db
http_addr: 127.0.0.1:9000
workers: 4
walkers: 3
max_file_size: 200MB
log_level: debug
nlp:
  sidecar_url: http://localhost:8001
  timeout: 5s
patterns:
  extra_id_numbers:
    - '\b\d{8}[A-Z]\b'
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/reports", cfg.ReportDir)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.ScanPaused)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 3, cfg.Walkers)
	assert.Equal(t, "http://localhost:8001", cfg.NLP.SidecarURL)
	assert.Equal(t, 5*time.Second, cfg.NLP.Timeout)
	assert.Equal(t, []string{`\b\d{8}[A-Z]\b`}, cfg.Patterns.ExtraIDNumbers)

	n, err := cfg.MaxFileSizeBytes()
	require.NoError(t, err)
	assert.EqualValues(t, 200_000_000, n)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	_, err := config.Load(writeConfig(t, "scan_pathz: [/x]\n"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	_, err := config.Load(writeConfig(t, "format: csv\n"))
	assert.ErrorContains(t, err, "format")

	_, err = config.Load(writeConfig(t, "max_file_size: lots\n"))
	assert.ErrorContains(t, err, "max_file_size")
}

func TestMaxFileSizeBytes_Unset(t *testing.T) {
	n, err := config.Default().MaxFileSizeBytes()
	require.NoError(t, err)
	assert.Zero(t, n)
}
