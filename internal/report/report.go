// Package report renders the result of a run: a sectioned plain-text (or
// JSON) report of hits plus a sibling error log.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eargollo/piifinder/internal/hits"
)

// Format selects the report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name. The empty string selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text or json)", s)
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string {
	if f == FormatJSON {
		return ".json"
	}
	return ".txt"
}

// Meta describes the run a report belongs to.
type Meta struct {
	CreatedAt time.Time
	Elapsed   time.Duration
	Roots     []string
}

// Section titles, in report order.
var sectionTitles = map[hits.Category]string{
	hits.Email:         "EMAIL ADDRESSES",
	hits.IDNumber:      "ID NUMBERS",
	hits.CardNumber:    "MONETARY CARD NUMBERS",
	hits.PersonName:    "PERSON NAMES",
	hits.GPSCoordinate: "GPS COORDINATES",
}

// WriteText writes the plain-text report: creation time in local time and
// UTC, the elapsed time, then one section per category with one
// "value, path" line per hit.
func WriteText(w io.Writer, meta Meta, snap hits.Snapshot) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\nLocal time of creation: %s\n", meta.CreatedAt.Local().Format(time.ANSIC))
	fmt.Fprintf(bw, "UTC time of creation: %s\n", meta.CreatedAt.UTC().Format(time.ANSIC))
	fmt.Fprintf(bw, "\nTime used: %.2f seconds\n", meta.Elapsed.Seconds())

	for _, cat := range hits.Categories {
		fmt.Fprintf(bw, "\n%s:\n", sectionTitles[cat])
		for _, h := range snap.Hits(cat) {
			fmt.Fprintf(bw, "%s, %s\n", h.Value, h.Path)
		}
	}
	return bw.Flush()
}

// WriteErrorLog writes one "error, path" line per recorded error. An empty
// error list produces an empty log.
func WriteErrorLog(w io.Writer, snap hits.Snapshot) error {
	bw := bufio.NewWriter(w)
	for _, e := range snap.Errors() {
		fmt.Fprintf(bw, "%s, %s\n", e.Message, e.Path)
	}
	return bw.Flush()
}

type jsonReport struct {
	CreatedAt      time.Time                   `json:"created_at"`
	ElapsedSeconds float64                     `json:"elapsed_seconds"`
	Roots          []string                    `json:"roots,omitempty"`
	Hits           map[hits.Category][]jsonHit `json:"hits"`
	Errors         []hits.ErrorRecord          `json:"errors"`
}

type jsonHit struct {
	Value string `json:"value"`
	Path  string `json:"path"`
}

// WriteJSON writes the report as a single JSON document. Every category is
// present, empty categories as empty arrays.
func WriteJSON(w io.Writer, meta Meta, snap hits.Snapshot) error {
	doc := jsonReport{
		CreatedAt:      meta.CreatedAt.UTC(),
		ElapsedSeconds: meta.Elapsed.Seconds(),
		Roots:          meta.Roots,
		Hits:           make(map[hits.Category][]jsonHit, len(hits.Categories)),
		Errors:         snap.Errors(),
	}
	for _, cat := range hits.Categories {
		list := make([]jsonHit, 0, snap.Count(cat))
		for _, h := range snap.Hits(cat) {
			list = append(list, jsonHit{Value: h.Value, Path: h.Path})
		}
		doc.Hits[cat] = list
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ErrorLogPath returns the error log path that belongs to reportPath:
// the report's base name without extension plus "_error_log.txt".
func ErrorLogPath(reportPath string) string {
	base := strings.TrimSuffix(reportPath, filepath.Ext(reportPath))
	return base + "_error_log.txt"
}

// TimestampedPath returns a report path inside dir named after t.
func TimestampedPath(dir string, f Format, t time.Time) string {
	return filepath.Join(dir, "piifinder-"+t.Format("20060102-150405")+f.Ext())
}

// WriteFiles writes the report to reportPath and the error log next to it,
// creating the parent directory when needed. The error log is written even
// when there are no errors. It returns the error log path.
func WriteFiles(reportPath string, f Format, meta Meta, snap hits.Snapshot) (string, error) {
	if dir := filepath.Dir(reportPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create report dir: %w", err)
		}
	}

	write := func(path string, render func(io.Writer) error) error {
		out, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := render(out); err != nil {
			out.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		return out.Close()
	}

	err := write(reportPath, func(w io.Writer) error {
		if f == FormatJSON {
			return WriteJSON(w, meta, snap)
		}
		return WriteText(w, meta, snap)
	})
	if err != nil {
		return "", fmt.Errorf("report: %w", err)
	}

	logPath := ErrorLogPath(reportPath)
	if err := write(logPath, func(w io.Writer) error { return WriteErrorLog(w, snap) }); err != nil {
		return "", fmt.Errorf("error log: %w", err)
	}
	return logPath, nil
}
