package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/eargollo/piifinder/internal/media"
)

// PDF extracts the text streams embedded in PDF files. Rasterised pages
// yield no text; there is no OCR.
type PDF struct{}

// NewPDF returns a PDF extractor.
func NewPDF() *PDF { return &PDF{} }

func (*PDF) Name() string                 { return "pdf" }
func (*PDF) SupportedMIMETypes() []string { return []string{media.MIMEPDF} }
func (*PDF) Priority() int                { return 50 }

// Extract reads every page's plain text. A page that fails to decode is
// skipped; the file is an error only when no page could be read at all.
func (*PDF) Extract(ctx context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	r, err := pdf.NewReader(f, st.Size())
	if err != nil {
		return nil, pdfOpenError(err)
	}

	var (
		sb      strings.Builder
		lastErr error
		okPages int
	)
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		// nil makes the page resolve its own font resources.
		text, err := p.GetPlainText(nil)
		if err != nil {
			lastErr = err
			continue
		}
		okPages++
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	if okPages == 0 && lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, lastErr)
	}

	return &Document{Text: sb.String()}, nil
}

// pdfOpenError classifies a reader construction failure. Files encrypted
// with a user password are readable PDFs we cannot decrypt.
func pdfOpenError(err error) error {
	if errors.Is(err, pdf.ErrInvalidPassword) {
		return fmt.Errorf("%w: password-protected pdf", ErrUnsupported)
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
