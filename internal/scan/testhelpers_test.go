package scan

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	internaldb "github.com/eargollo/piifinder/internal/db"
	"github.com/eargollo/piifinder/internal/detect"
	"github.com/eargollo/piifinder/internal/extract"
	"github.com/eargollo/piifinder/internal/patterns"
)

// mustOpenDB opens a temp file SQLite database with the full schema applied.
func mustOpenDB(tb testing.TB) *sql.DB {
	tb.Helper()
	dbPath := filepath.Join(tb.TempDir(), "test.db")
	db, err := internaldb.Open(dbPath)
	if err != nil {
		tb.Fatalf("open test DB: %v", err)
	}
	if err := internaldb.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		tb.Fatalf("run migrations: %v", err)
	}
	tb.Cleanup(func() { db.Close() })
	return db
}

// newTestScanner returns a Scanner with the built-in extractors and
// patterns and no name recognition.
func newTestScanner(cfg Config) *Scanner {
	return New(extract.Default(), detect.New(patterns.Default(), nil), cfg)
}

// noErrors is an ErrorReporter that fails the test if invoked.
func noErrors(tb testing.TB) ErrorReporter {
	return func(path, stage, errMsg string) {
		tb.Errorf("unexpected scan error: path=%q stage=%q err=%q", path, stage, errMsg)
	}
}

// collectErrors returns an ErrorReporter that appends to *got.
func collectErrors(got *[]string) ErrorReporter {
	return func(path, stage, errMsg string) {
		*got = append(*got, stage+":"+path)
	}
}

// createSyntheticTree builds a flat-ish directory tree with numFiles text
// files. Every 10th file contains an email address unique to that file.
// Returns the number of files carrying an address.
func createSyntheticTree(tb testing.TB, root string, numFiles int) int {
	tb.Helper()
	withPII := 0
	for i := 0; i < numFiles; i++ {
		subdir := filepath.Join(root, fmt.Sprintf("dir%03d", i/50))
		if err := os.MkdirAll(subdir, 0755); err != nil {
			tb.Fatalf("mkdir %q: %v", subdir, err)
		}
		p := filepath.Join(subdir, fmt.Sprintf("file%04d.txt", i))
		content := fmt.Sprintf("%-1024d", i)
		if i%10 == 0 {
			content = fmt.Sprintf("owner user%04d@example.com\n%s", i, content)
			withPII++
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			tb.Fatalf("write %q: %v", p, err)
		}
	}
	return withPII
}
