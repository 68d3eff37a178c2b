// Package fixtures builds small documents of every supported format for
// tests. Each builder writes a complete, parseable file to the given path.
package fixtures

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"
)

// Write writes data to path.
func Write(tb testing.TB, path string, data []byte) {
	tb.Helper()
	require.NoError(tb, os.WriteFile(path, data, 0o644))
}

// DOCXBytes returns a minimal word-processing container with one paragraph
// per element of paragraphs.
func DOCXBytes(tb testing.TB, paragraphs ...string) []byte {
	tb.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		body.WriteString(xmlEscape(p))
		body.WriteString(`</w:t></w:r></w:p>`)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, content string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
			`<w:body>` + body.String() + `</w:body></w:document>`},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		require.NoError(tb, err)
		_, err = w.Write([]byte(p.content))
		require.NoError(tb, err)
	}
	require.NoError(tb, zw.Close())
	return buf.Bytes()
}

// DOCX writes a word-processing document to path.
func DOCX(tb testing.TB, path string, paragraphs ...string) {
	tb.Helper()
	Write(tb, path, DOCXBytes(tb, paragraphs...))
}

// CorruptDOCX writes a word-processing container whose central directory
// has been cut off. Its local headers still name word/document.xml.
func CorruptDOCX(tb testing.TB, path string) {
	tb.Helper()
	full := DOCXBytes(tb, "this text is lost")
	Write(tb, path, full[:len(full)-40])
}

// Sheet is one worksheet of an XLSX fixture.
type Sheet struct {
	Name  string
	Cells map[string]any
}

// XLSX writes a workbook with the given sheets and makes active the
// current worksheet. The first sheet is always named "Sheet1".
func XLSX(tb testing.TB, path string, active string, sheets ...Sheet) {
	tb.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for _, s := range sheets {
		if s.Name != "Sheet1" {
			_, err := f.NewSheet(s.Name)
			require.NoError(tb, err)
		}
		for cell, v := range s.Cells {
			require.NoError(tb, f.SetCellValue(s.Name, cell, v))
		}
	}
	idx, err := f.GetSheetIndex(active)
	require.NoError(tb, err)
	require.GreaterOrEqual(tb, idx, 0, "unknown active sheet %q", active)
	f.SetActiveSheet(idx)
	require.NoError(tb, f.SaveAs(path))
}

// SQLite creates a database at path and runs stmts against it.
//
// The database is built under a plain temporary name and renamed, so path
// may contain characters the driver would read as DSN syntax.
func SQLite(tb testing.TB, path string, stmts ...string) {
	tb.Helper()
	tmp := filepath.Join(tb.TempDir(), "build.db")
	db, err := sql.Open("sqlite", tmp)
	require.NoError(tb, err)
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(tb, err, s)
	}
	require.NoError(tb, db.Close())
	require.NoError(tb, os.Rename(tmp, path))
}

// PDFBytes returns a single-page PDF whose content stream shows each line
// with the standard Helvetica font. Lines must be ASCII.
func PDFBytes(lines ...string) []byte {
	var content strings.Builder
	content.WriteString("BT /F1 12 Tf 72 720 Td 14 TL\n")
	for _, l := range lines {
		fmt.Fprintf(&content, "(%s ) Tj T*\n", pdfEscape(l))
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R " +
			"/Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// PDF writes a single-page PDF to path.
func PDF(tb testing.TB, path string, lines ...string) {
	tb.Helper()
	Write(tb, path, PDFBytes(lines...))
}

// GPSPosition is the position embedded by JPEGWithGPS, as rendered in
// reports: 59°54'50.04"N 10°45'7.92"E.
const GPSPosition = "Lat:59.913900 Long:10.752200"

// JPEGWithGPS writes a JPEG stream consisting of an EXIF APP1 segment that
// carries GPSLatitude/GPSLongitude tags. It has no image data; only the
// metadata matters to the scanner.
func JPEGWithGPS(tb testing.TB, path string) {
	tb.Helper()
	Write(tb, path, jpegWithExif(gpsTIFF()))
}

// JPEGWithoutExif writes a JPEG stream with no metadata segment.
func JPEGWithoutExif(tb testing.TB, path string) {
	tb.Helper()
	Write(tb, path, []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x04, 0x00, 0x00, 0xFF, 0xD9})
}

func jpegWithExif(tiff []byte) []byte {
	payload := append([]byte("Exif\x00\x00"), tiff...)
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(payload)+2))
	buf.Write(payload)
	buf.Write([]byte{0xFF, 0xD9})
	return buf.Bytes()
}

// gpsTIFF builds a little-endian TIFF structure: IFD0 with a single GPS IFD
// pointer, and a GPS IFD with four entries.
func gpsTIFF() []byte {
	const (
		typeASCII    = 2
		typeLong     = 4
		typeRational = 5

		ifd0Offset = 8
		gpsOffset  = ifd0Offset + 2 + 12 + 4 // 26
		dataOffset = gpsOffset + 2 + 4*12 + 4 // 80
	)
	le := binary.LittleEndian
	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, le, v) }

	buf.WriteString("II")
	w(uint16(42))
	w(uint32(ifd0Offset))

	// IFD0: GPSInfo pointer.
	w(uint16(1))
	w(uint16(0x8825))
	w(uint16(typeLong))
	w(uint32(1))
	w(uint32(gpsOffset))
	w(uint32(0))

	// GPS IFD.
	w(uint16(4))
	entry := func(tag, typ uint16, count, value uint32) {
		w(tag)
		w(typ)
		w(count)
		w(value)
	}
	ascii := func(c byte) uint32 { return uint32(c) }
	entry(0x0001, typeASCII, 2, ascii('N'))
	entry(0x0002, typeRational, 3, dataOffset)
	entry(0x0003, typeASCII, 2, ascii('E'))
	entry(0x0004, typeRational, 3, dataOffset+24)
	w(uint32(0))

	for _, r := range [][2]uint32{{59, 1}, {54, 1}, {5004, 100}, {10, 1}, {45, 1}, {792, 100}} {
		w(r[0])
		w(r[1])
	}
	return buf.Bytes()
}

func xmlEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func pdfEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
