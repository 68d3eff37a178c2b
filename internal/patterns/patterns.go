// Package patterns defines the regular expressions used to find email
// addresses, national identity numbers and payment-card numbers.
//
// The library is data: supporting a new identifier scheme means appending a
// Rule, never touching the scanner.
package patterns

import (
	"fmt"
	"regexp"

	"github.com/eargollo/piifinder/internal/hits"
)

// latin covers ASCII letters plus the Latin-1 letters common in Nordic and
// western European addresses (æ, ø, å, é, ü, ß, ...).
const latin = `A-Za-z0-9À-ÖØ-öø-ÿ`

// Rule is a single pattern for one category.
type Rule struct {
	Category hits.Category
	// Scheme names the identifier format, e.g. "no-fnr" or "us-ssn".
	Scheme string
	Expr   string
	// IgnoreCase compiles Expr with the (?i) flag.
	IgnoreCase bool
}

// DefaultRules returns the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category:   hits.Email,
			Scheme:     "email",
			Expr:       `[` + latin + `+._-]+@[` + latin + `._-]+\.[` + latin + `_-]+`,
			IgnoreCase: true,
		},

		// Norwegian fødselsnummer, Polish PESEL.
		{Category: hits.IDNumber, Scheme: "no-fnr", Expr: `\b\d{11}\b`},
		// UK National Insurance number.
		{Category: hits.IDNumber, Scheme: "uk-nino", Expr: `\b[a-ceghj-npr-tw-zA-CEGHJ-PR-TW-Z]{2}\d{6}[a-dA-D]?\b`},
		// US Social Security number.
		{Category: hits.IDNumber, Scheme: "us-ssn", Expr: `\b\d{3}-\d{2}-\d{4}\b`},
		// Danish CPR, Swedish personnummer.
		{Category: hits.IDNumber, Scheme: "dk-cpr", Expr: `\b\d{6}-\d{4}\b`},
		// Finnish henkilötunnus.
		{Category: hits.IDNumber, Scheme: "fi-hetu", Expr: `\b\d{6}-\d{3}[a-zA-Z]\b`},

		// Dash-separated groups only; bare 16-digit runs are too noisy.
		{Category: hits.CardNumber, Scheme: "card-4x4", Expr: `\b\d{4}-\d{4}-\d{4}-\d{4}\b`},
	}
}

// Pattern is a compiled Rule.
type Pattern struct {
	Rule
	re *regexp.Regexp
}

// FindAllString returns every non-overlapping match in s.
func (p *Pattern) FindAllString(s string) []string {
	return p.re.FindAllString(s, -1)
}

// FindAll returns every non-overlapping match in b. Invalid UTF-8 in b is
// treated as U+FFFD by the matcher and never stops matching.
func (p *Pattern) FindAll(b []byte) [][]byte {
	return p.re.FindAll(b, -1)
}

// Library is a compiled, immutable set of patterns.
type Library struct {
	patterns []*Pattern
}

// Compile compiles every rule. An invalid expression is reported here so it
// can never surface in the middle of a scan.
func Compile(rules []Rule) (*Library, error) {
	lib := &Library{patterns: make([]*Pattern, 0, len(rules))}
	for _, r := range rules {
		expr := r.Expr
		if r.IgnoreCase {
			expr = `(?i)` + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile %s pattern %q: %w", r.Category, r.Scheme, err)
		}
		lib.patterns = append(lib.patterns, &Pattern{Rule: r, re: re})
	}
	return lib, nil
}

// Default returns the compiled built-in library.
func Default() *Library {
	lib, err := Compile(DefaultRules())
	if err != nil {
		panic(err)
	}
	return lib
}

// WithIDNumbers returns a library containing the default rules plus one
// id-number rule per extra expression, keyed "custom-N".
func WithIDNumbers(extra []string) (*Library, error) {
	rules := DefaultRules()
	for i, expr := range extra {
		rules = append(rules, Rule{
			Category: hits.IDNumber,
			Scheme:   fmt.Sprintf("custom-%d", i+1),
			Expr:     expr,
		})
	}
	return Compile(rules)
}

// Patterns returns the compiled patterns in rule order.
func (l *Library) Patterns() []*Pattern {
	out := make([]*Pattern, len(l.patterns))
	copy(out, l.patterns)
	return out
}

// For returns the patterns of one category.
func (l *Library) For(cat hits.Category) []*Pattern {
	var out []*Pattern
	for _, p := range l.patterns {
		if p.Category == cat {
			out = append(out, p)
		}
	}
	return out
}

// With returns a new library holding l's patterns plus rule. l is not
// modified.
func (l *Library) With(rule Rule) (*Library, error) {
	extra, err := Compile([]Rule{rule})
	if err != nil {
		return nil, err
	}
	out := &Library{patterns: make([]*Pattern, 0, len(l.patterns)+1)}
	out.patterns = append(out.patterns, l.patterns...)
	out.patterns = append(out.patterns, extra.patterns...)
	return out, nil
}
