// Package extract turns files into scannable content. One Extractor exists
// per supported format; a Registry selects it by the MIME type the
// classifier derived from the file's content.
package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/eargollo/piifinder/internal/media"
)

var (
	// ErrMalformed indicates a container or stream that could not be parsed.
	ErrMalformed = errors.New("malformed document")

	// ErrUnsupported indicates a sub-format the extractor cannot read.
	ErrUnsupported = errors.New("unsupported format")

	// ErrNoExtractor indicates that no registered extractor accepts a MIME type.
	ErrNoExtractor = errors.New("no extractor")
)

// Document is the transient result of extracting one file. Exactly one of
// Text/Raw or GPS is meaningful, depending on the extractor.
type Document struct {
	Path   string
	Format string
	// Text is decoded text content.
	Text string
	// Raw holds undecoded file bytes; set only by the generic extractor,
	// whose patterns run on bytes.
	Raw []byte
	// GPS is set by the image extractor when the file carries a position.
	GPS *media.Coordinates
}

// Empty reports whether the document carries nothing to scan.
func (d *Document) Empty() bool {
	return d == nil || (d.Text == "" && len(d.Raw) == 0 && d.GPS == nil)
}

// Extractor reads one family of formats.
type Extractor interface {
	// Name identifies the extractor in logs and errors, e.g. "pdf".
	Name() string

	// SupportedMIMETypes returns the MIME types handled. "image/*" matches
	// any subtype; "*/*" matches everything.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific extractors return 50; the fallback returns 1.
	Priority() int

	// Extract reads the file at path. Implementations release every handle
	// they open before returning.
	Extract(ctx context.Context, path string) (*Document, error)
}

// Registry selects an Extractor for a MIME type.
type Registry struct {
	extractors []Extractor
}

// NewRegistry returns a registry holding extractors.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Default returns a registry with every built-in extractor.
func Default() *Registry {
	return NewRegistry(
		NewPDF(),
		NewDOCX(),
		NewXLSX(),
		NewSQLite(),
		NewImage(),
		NewGeneric(),
	)
}

// Register adds e, keeping extractors ordered by descending priority.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
	sort.SliceStable(r.extractors, func(i, j int) bool {
		return r.extractors[i].Priority() > r.extractors[j].Priority()
	})
}

// For returns the highest-priority extractor accepting mime.
func (r *Registry) For(mime string) (Extractor, error) {
	for _, e := range r.extractors {
		for _, m := range e.SupportedMIMETypes() {
			if mimeMatches(m, mime) {
				return e, nil
			}
		}
	}
	return nil, fmt.Errorf("%w for %q", ErrNoExtractor, mime)
}

// Extract picks the extractor for mime and runs it on path. A panic inside a
// third-party parser is recovered and returned as an ErrMalformed error so
// one hostile file cannot stop a walk.
func (r *Registry) Extract(ctx context.Context, mime, path string) (doc *Document, err error) {
	e, err := r.For(mime)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = fmt.Errorf("%s: %w: parser panic: %v", e.Name(), ErrMalformed, rec)
		}
	}()

	doc, err = e.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name(), err)
	}
	if doc != nil {
		doc.Path = path
		doc.Format = e.Name()
	}
	return doc, nil
}

func mimeMatches(pattern, mime string) bool {
	if pattern == "*/*" || pattern == mime {
		return true
	}
	if major, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(mime, major+"/")
	}
	return false
}
