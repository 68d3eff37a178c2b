package extract

import (
	"bytes"
	"context"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Generic handles every file no other extractor claims. Patterns run on the
// raw bytes, so detection never depends on the content decoding cleanly.
type Generic struct{}

// NewGeneric returns the fallback extractor.
func NewGeneric() *Generic { return &Generic{} }

func (*Generic) Name() string                 { return "generic" }
func (*Generic) SupportedMIMETypes() []string { return []string{"*/*"} }
func (*Generic) Priority() int                { return 1 }

// Extract returns the raw bytes plus a best-effort text decoding used for
// name recognition. Content containing NUL bytes is treated as binary and
// gets no text.
func (*Generic) Extract(_ context.Context, path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := &Document{Raw: raw}
	if bytes.IndexByte(raw, 0) < 0 {
		doc.Text = DecodeText(raw)
	}
	return doc, nil
}

// DecodeText returns b as a string. Valid UTF-8 is used as is; anything
// else is read as Windows-1252, the usual encoding of legacy Latin-script
// office files. Decoding never fails.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	s, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
