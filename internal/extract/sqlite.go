package extract

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/eargollo/piifinder/internal/media"
)

// SQLite extracts the contents of every user table of a SQLite database.
type SQLite struct{}

// NewSQLite returns a SQLite extractor.
func NewSQLite() *SQLite { return &SQLite{} }

func (*SQLite) Name() string                 { return "sqlite" }
func (*SQLite) SupportedMIMETypes() []string { return []string{media.MIMESQLite} }
func (*SQLite) Priority() int                { return 50 }

// Extract opens the database read-only and stringifies all rows of all user
// tables. Table names are taken from sqlite_master only and quoted as
// identifiers before use.
func (*SQLite) Extract(ctx context.Context, path string) (*Document, error) {
	dsn, err := readOnlyDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	tables, err := userTables(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables: %v", ErrMalformed, err)
	}

	var sb strings.Builder
	for _, table := range tables {
		if err := dumpTable(ctx, db, table, &sb); err != nil {
			return nil, fmt.Errorf("%w: table %q: %v", ErrMalformed, table, err)
		}
	}
	return &Document{Text: sb.String()}, nil
}

// readOnlyDSN returns a read-only SQLite URI for path. Every byte outside
// the unreserved set is percent-encoded, so names holding '?', '#' or '%'
// reach SQLite intact instead of being parsed as URI or DSN syntax.
func readOnlyDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p // drive-letter paths
	}

	var b strings.Builder
	b.WriteString("file://")
	for i := 0; i < len(p); i++ {
		c := p[i]
		if isURIUnreserved(c) || c == '/' || c == ':' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	b.WriteString("?mode=ro")
	return b.String(), nil
}

func isURIUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return c == '-' || c == '.' || c == '_' || c == '~'
}

func userTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// dumpTable writes one line per row, column values space-separated.
func dumpTable(ctx context.Context, db *sql.DB, table string, sb *strings.Builder) error {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		first := true
		for _, v := range vals {
			s, ok := stringify(v)
			if !ok {
				continue
			}
			if !first {
				sb.WriteByte(' ')
			}
			sb.WriteString(s)
			first = false
		}
		sb.WriteByte('\n')
	}
	return rows.Err()
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case []byte:
		return string(t), true
	case string:
		return t, true
	default:
		return fmt.Sprint(t), true
	}
}

// quoteIdent quotes a SQLite identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
