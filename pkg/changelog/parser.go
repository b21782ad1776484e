/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package changelog extracts and validates the changelog declared in a pull
// request description.
//
// A description declares its changelog under a fixed heading:
//
//	## Changelog
//	<!-- anything in a comment is ignored -->
//	- feat: Add the frobnicator
//	- fix: Stop leaking file handles
//
// Each entry is a hyphen, a prefix from the Taxonomy, an optional colon and a
// description. The reserved prefix "skip" declares that no changeset is needed.
package changelog

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultHeading introduces the changelog section.
	DefaultHeading = "## Changelog"

	// DefaultMaxEntryLength is the longest description accepted, in characters.
	DefaultMaxEntryLength = 100

	entryMarker = "-"
)

// Entry is one validated changelog declaration.
type Entry struct {
	Prefix      Prefix
	Description string
}

// Parser turns pull request descriptions into entries. It is safe for
// concurrent use.
type Parser struct {
	heading   string
	section   *regexp.Regexp
	taxonomy  Taxonomy
	maxLength int
}

// Option configures a Parser.
type Option func(*Parser)

// WithHeading sets the heading that introduces the changelog section.
func WithHeading(heading string) Option {
	return func(p *Parser) { p.heading = heading }
}

// WithTaxonomy sets the allowed prefixes.
func WithTaxonomy(t Taxonomy) Option {
	return func(p *Parser) { p.taxonomy = t }
}

// WithMaxEntryLength sets the maximum description length.
func WithMaxEntryLength(n int) Option {
	return func(p *Parser) { p.maxLength = n }
}

// NewParser returns a Parser using the default heading, taxonomy and
// maximum length unless overridden.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		heading:   DefaultHeading,
		taxonomy:  DefaultTaxonomy,
		maxLength: DefaultMaxEntryLength,
	}
	for _, opt := range opts {
		opt(p)
	}
	// The body runs until the next line starting with "##" or the end of the text.
	p.section = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(p.heading) + `[ \t]*(.*?)(?:\n##|$)`)
	return p
}

// Heading returns the configured section heading.
func (p *Parser) Heading() string { return p.heading }

// Section returns the body of the changelog section, which may be empty.
func (p *Parser) Section(description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", errInvalidHeading(p.heading)
	}
	m := p.section.FindStringSubmatch(description)
	if m == nil {
		return "", errInvalidHeading(p.heading)
	}
	return m[1], nil
}

var prefixPattern = regexp.MustCompile(`^([A-Za-z0-9]+):?(.*)$`)

// Entry validates a single entry line.
func (p *Parser) Entry(line string) (Entry, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), entryMarker)
	if !ok {
		return Entry{}, errMissingMarker()
	}
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)

	m := prefixPattern.FindStringSubmatch(rest)
	if m == nil {
		found, _, _ := strings.Cut(rest, ":")
		return Entry{}, errInvalidPrefix(strings.TrimSpace(found), p.taxonomy)
	}

	prefix, ok := p.taxonomy.Lookup(m[1])
	if !ok {
		return Entry{}, errInvalidPrefix(m[1], p.taxonomy)
	}
	if prefix == Skip {
		return Entry{Prefix: Skip}, nil
	}

	desc := strings.TrimSpace(m[2])
	if desc == "" {
		return Entry{}, errEmptyDescription(prefix)
	}
	if n := utf8.RuneCountInString(desc); n > p.maxLength {
		return Entry{}, errTooLong(n, p.maxLength)
	}

	return Entry{Prefix: prefix, Description: capitalize(desc)}, nil
}

// Parse extracts every entry from a pull request description. The first
// invalid entry aborts the whole batch. A section without entries fails with
// EmptyChangelogSection; callers that tolerate it check for that kind.
func (p *Parser) Parse(description string) ([]Entry, error) {
	section, err := p.Section(description)
	if err != nil {
		return nil, err
	}

	lines := EntryLines(section)
	if len(lines) == 0 {
		return nil, errEmptySection()
	}

	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		e, err := p.Entry(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SkipRequested reports whether entries declare skip. Declaring skip next to
// any other prefix is an error.
func SkipRequested(entries []Entry) (bool, error) {
	var skip, other bool
	for _, e := range entries {
		if e.Prefix == Skip {
			skip = true
		} else {
			other = true
		}
	}
	if skip && other {
		return false, ErrCategoryWithSkip()
	}
	return skip, nil
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
