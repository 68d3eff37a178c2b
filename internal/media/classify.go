// Package media identifies file content by signature and reads the
// metadata embedded in image files.
package media

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/h2non/filetype"
)

// MIME types the classifier can return besides whatever filetype reports.
const (
	MIMEPDF         = "application/pdf"
	MIMEDocx        = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXlsx        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEZip         = "application/zip"
	MIMESQLite      = "application/x-sqlite3"
	MIMEOctetStream = "application/octet-stream"
)

// headerSize is how much of a file is read for signature matching.
const headerSize = 8192

var (
	zipMagic    = []byte("PK\x03\x04")
	sqliteMagic = []byte("SQLite format 3\x00")
)

// Classify returns the MIME type of the file at path based on its content
// signature. The file name and extension are never consulted, so a PDF saved
// as notes.txt is still reported as application/pdf.
// Content that matches no known signature is application/octet-stream.
func Classify(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	header := make([]byte, headerSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("read header: %w", err)
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, sqliteMagic):
		return MIMESQLite, nil
	case bytes.HasPrefix(header, zipMagic):
		return classifyZip(f, header), nil
	}

	kind, err := filetype.Match(header)
	if err != nil || kind == filetype.Unknown {
		return MIMEOctetStream, nil
	}
	return kind.MIME.Value, nil
}

// classifyZip tells word-processing and spreadsheet containers apart from
// other zip archives by the part names they carry. When the central
// directory is unreadable (a truncated or damaged container) the local file
// headers in the already-read header are searched instead, so a broken docx
// is still routed to the docx extractor and reported there.
func classifyZip(f *os.File, header []byte) string {
	if st, err := f.Stat(); err == nil {
		if zr, err := zip.NewReader(f, st.Size()); err == nil {
			for _, zf := range zr.File {
				switch {
				case strings.HasPrefix(zf.Name, "word/"):
					return MIMEDocx
				case strings.HasPrefix(zf.Name, "xl/"):
					return MIMEXlsx
				}
			}
			return MIMEZip
		}
	}

	switch {
	case bytes.Contains(header, []byte("word/")):
		return MIMEDocx
	case bytes.Contains(header, []byte("xl/")):
		return MIMEXlsx
	}
	return MIMEZip
}
