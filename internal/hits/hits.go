// Package hits holds the result types of a PII scan and the deduplicating
// store that accumulates them during a walk.
package hits

import (
	"path/filepath"
	"sort"
	"sync"
)

// Category classifies a detected PII value.
type Category string

const (
	Email         Category = "email"
	IDNumber      Category = "id_number"
	CardNumber    Category = "card_number"
	PersonName    Category = "person_name"
	GPSCoordinate Category = "gps_coordinate"
)

// Categories lists every category in report order.
var Categories = []Category{Email, IDNumber, CardNumber, PersonName, GPSCoordinate}

// Hit is one detected PII value and the file it was found in.
// The struct itself is the deduplication key.
type Hit struct {
	Category Category `json:"category"`
	Value    string   `json:"value"`
	Path     string   `json:"path"`
}

// New returns a Hit with a normalised path.
func New(cat Category, value, path string) Hit {
	return Hit{Category: cat, Value: value, Path: NormalizePath(path)}
}

// ErrorRecord is a non-fatal failure tied to one file.
type ErrorRecord struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

// NormalizePath cleans path the same way for hits and errors so that the
// same file never appears under two spellings.
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}

// Store accumulates hits and errors for one run. It is safe for concurrent
// use; the zero value is not usable, call NewStore.
type Store struct {
	mu     sync.Mutex
	hits   map[Hit]struct{}
	errors map[ErrorRecord]struct{}
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		hits:   make(map[Hit]struct{}),
		errors: make(map[ErrorRecord]struct{}),
	}
}

// Add records h. Adding the same hit twice is a no-op.
// It reports whether h was new.
func (s *Store) Add(h Hit) bool {
	h.Path = NormalizePath(h.Path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hits[h]; ok {
		return false
	}
	s.hits[h] = struct{}{}
	return true
}

// AddAll records every hit in hs and returns how many were new.
func (s *Store) AddAll(hs []Hit) int {
	n := 0
	for _, h := range hs {
		if s.Add(h) {
			n++
		}
	}
	return n
}

// AddError records e. Identical records are kept once.
func (s *Store) AddError(e ErrorRecord) {
	e.Path = NormalizePath(e.Path)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[e] = struct{}{}
}

// Len returns the number of distinct hits and errors recorded so far.
func (s *Store) Len() (nHits, nErrors int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hits), len(s.errors)
}

// Snapshot returns a read-only copy of the current contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCat := make(map[Category][]Hit, len(Categories))
	for h := range s.hits {
		byCat[h.Category] = append(byCat[h.Category], h)
	}
	for _, hs := range byCat {
		sortHits(hs)
	}

	errs := make([]ErrorRecord, 0, len(s.errors))
	for e := range s.errors {
		errs = append(errs, e)
	}
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Path != errs[j].Path {
			return errs[i].Path < errs[j].Path
		}
		return errs[i].Message < errs[j].Message
	})

	return Snapshot{byCategory: byCat, errors: errs}
}

// Snapshot is an immutable view of a Store. Hits within a category are
// sorted by value, then path.
type Snapshot struct {
	byCategory map[Category][]Hit
	errors     []ErrorRecord
}

// Hits returns a copy of the hits recorded for cat.
func (s Snapshot) Hits(cat Category) []Hit {
	src := s.byCategory[cat]
	out := make([]Hit, len(src))
	copy(out, src)
	return out
}

// All returns every hit in report order.
func (s Snapshot) All() []Hit {
	var out []Hit
	for _, c := range Categories {
		out = append(out, s.byCategory[c]...)
	}
	return out
}

// Count returns the number of hits for cat.
func (s Snapshot) Count(cat Category) int {
	return len(s.byCategory[cat])
}

// Total returns the number of hits across all categories.
func (s Snapshot) Total() int {
	n := 0
	for _, hs := range s.byCategory {
		n += len(hs)
	}
	return n
}

// Errors returns a copy of the recorded errors, sorted by path.
func (s Snapshot) Errors() []ErrorRecord {
	out := make([]ErrorRecord, len(s.errors))
	copy(out, s.errors)
	return out
}

func sortHits(hs []Hit) {
	sort.Slice(hs, func(i, j int) bool {
		if hs[i].Value != hs[j].Value {
			return hs[i].Value < hs[j].Value
		}
		return hs[i].Path < hs[j].Path
	})
}
