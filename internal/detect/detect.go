// Package detect finds PII in extracted content: regular-expression matches
// for emails, id numbers and card numbers, and person names from the entity
// recognizer.
package detect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/eargollo/piifinder/internal/hits"
	"github.com/eargollo/piifinder/internal/media"
	"github.com/eargollo/piifinder/internal/nlp"
	"github.com/eargollo/piifinder/internal/patterns"
)

// ErrRecognizer wraps failures of the entity recognizer. Hits found before
// the failure are still returned alongside it.
var ErrRecognizer = errors.New("entity recognizer")

// Scanner runs the pattern library and the entity recognizer over content.
// It holds no per-file state and is safe for concurrent use.
type Scanner struct {
	lib *patterns.Library
	ner nlp.EntityRecognizer
}

// New returns a Scanner. A nil ner disables name recognition.
func New(lib *patterns.Library, ner nlp.EntityRecognizer) *Scanner {
	return &Scanner{lib: lib, ner: ner}
}

// ScanText returns every hit in decoded text. Regex hits are returned even
// when name recognition fails; the error then wraps ErrRecognizer.
func (s *Scanner) ScanText(ctx context.Context, text, path string) ([]hits.Hit, error) {
	var out []hits.Hit
	for _, p := range s.lib.Patterns() {
		for _, m := range p.FindAllString(text) {
			out = append(out, hits.New(p.Category, m, path))
		}
	}
	names, err := s.persons(ctx, text, path)
	return append(out, names...), err
}

// ScanRaw runs the patterns over undecoded bytes and name recognition over
// text. Bytes that are not valid UTF-8 never stop matching; a match that
// contains them is reported with U+FFFD in their place.
func (s *Scanner) ScanRaw(ctx context.Context, raw []byte, text, path string) ([]hits.Hit, error) {
	var out []hits.Hit
	for _, p := range s.lib.Patterns() {
		for _, m := range p.FindAll(raw) {
			out = append(out, hits.New(p.Category, strings.ToValidUTF8(string(m), "�"), path))
		}
	}
	names, err := s.persons(ctx, text, path)
	return append(out, names...), err
}

// ScanGPS turns an image position into a hit.
func ScanGPS(pos *media.Coordinates, path string) []hits.Hit {
	if pos == nil {
		return nil
	}
	return []hits.Hit{hits.New(hits.GPSCoordinate, pos.String(), path)}
}

// persons detects the language of text, picks the matching model and
// returns one hit per distinct name, sorted. Names are compared as
// returned by the recognizer.
func (s *Scanner) persons(ctx context.Context, text, path string) ([]hits.Hit, error) {
	if s.ner == nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	model := nlp.ModelFor(s.ner.DetectLanguage(ctx, text))
	names, err := s.ner.Model(model).FindPersons(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: model %s: %v", ErrRecognizer, model, err)
	}

	seen := make(map[string]struct{}, len(names))
	uniq := make([]string, 0, len(names))
	for _, n := range names {
		// Distinct means byte-identical; whitespace variants stay separate.
		if strings.TrimSpace(n) == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		uniq = append(uniq, n)
	}
	sort.Strings(uniq)

	out := make([]hits.Hit, len(uniq))
	for i, n := range uniq {
		out[i] = hits.New(hits.PersonName, n, path)
	}
	return out, nil
}
