/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package changelog

import (
	"fmt"
	"strings"
)

// Prefix is the category keyword of a changelog entry.
type Prefix string

const (
	Breaking  Prefix = "breaking"
	Deprecate Prefix = "deprecate"
	Feat      Prefix = "feat"
	Fix       Prefix = "fix"
	Infra     Prefix = "infra"
	Doc       Prefix = "doc"
	Chore     Prefix = "chore"
	Refactor  Prefix = "refactor"
	Security  Prefix = "security"
	Test      Prefix = "test"

	// Skip is reserved: it declares that the PR needs no changeset and
	// may not be combined with any other prefix.
	Skip Prefix = "skip"
)

// Taxonomy is an ordered set of allowed prefixes. The reserved Skip prefix
// is always accepted and is not part of the set.
type Taxonomy struct {
	prefixes []Prefix
	expected string
}

// DefaultTaxonomy is the set of categories accepted in changelog entries.
var DefaultTaxonomy = NewTaxonomy(Breaking, Deprecate, Feat, Fix, Infra, Doc, Chore, Refactor, Security, Test)

// NewTaxonomy returns a taxonomy over the given prefixes, in order.
func NewTaxonomy(prefixes ...Prefix) Taxonomy {
	quoted := make([]string, 0, len(prefixes)+1)
	for _, p := range prefixes {
		quoted = append(quoted, fmt.Sprintf("%q", p))
	}
	quoted = append(quoted, fmt.Sprintf("%q", Skip))

	var expected string
	switch len(quoted) {
	case 1:
		expected = quoted[0]
	default:
		expected = strings.Join(quoted[:len(quoted)-1], ", ") + ", or " + quoted[len(quoted)-1]
	}

	return Taxonomy{
		prefixes: append([]Prefix(nil), prefixes...),
		expected: expected,
	}
}

// Prefixes returns the allowed prefixes in order, without Skip.
func (t Taxonomy) Prefixes() []Prefix {
	return append([]Prefix(nil), t.prefixes...)
}

// Lookup resolves s case-insensitively to a member of the taxonomy or Skip.
func (t Taxonomy) Lookup(s string) (Prefix, bool) {
	if strings.EqualFold(s, string(Skip)) {
		return Skip, true
	}
	for _, p := range t.prefixes {
		if strings.EqualFold(s, string(p)) {
			return p, true
		}
	}
	return "", false
}

// Expected lists every accepted prefix for use in error messages,
// e.g. `"feat", "fix", or "skip"`.
func (t Taxonomy) Expected() string {
	return t.expected
}
