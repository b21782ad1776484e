/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package changeset

import (
	"fmt"
	"strings"

	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
)

// Parse reads a fragment back into a Map. A fragment is a sequence of
// blocks separated by blank lines. Each block is a "prefix:" header naming
// a member of the taxonomy followed by one or more "- " entry lines.
// Entry text is kept verbatim, so anything Render produces parses back.
func Parse(text string, t changelog.Taxonomy) (*Map, error) {
	m := &Map{lines: map[changelog.Prefix][]string{}}

	var current changelog.Prefix
	inBlock := false
	closeBlock := func(n int) error {
		if inBlock && len(m.lines[current]) == 0 {
			return fmt.Errorf("line %d: prefix %q must list at least one entry", n, current)
		}
		inBlock = false
		return nil
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		n := i + 1
		line = strings.TrimSuffix(line, "\r")

		switch {
		case strings.TrimSpace(line) == "":
			if err := closeBlock(n); err != nil {
				return nil, err
			}

		case strings.HasPrefix(line, "- "):
			if !inBlock {
				return nil, fmt.Errorf("line %d: entry outside of a prefix block", n)
			}
			if strings.TrimSpace(line[2:]) == "" {
				return nil, fmt.Errorf("line %d: empty entry under %q", n, current)
			}
			m.lines[current] = append(m.lines[current], line)

		case strings.HasSuffix(line, ":"):
			if inBlock {
				return nil, fmt.Errorf("line %d: missing blank line before %q", n, line)
			}
			key := strings.TrimSuffix(line, ":")
			prefix, ok := t.Lookup(key)
			if !ok || prefix == changelog.Skip || prefix != changelog.Prefix(key) {
				return nil, fmt.Errorf("line %d: unknown prefix %q, expected one of %s", n, key, t.Expected())
			}
			if _, dup := m.lines[prefix]; dup {
				return nil, fmt.Errorf("line %d: prefix %q appears more than once", n, key)
			}
			m.order = append(m.order, prefix)
			m.lines[prefix] = nil
			current, inBlock = prefix, true

		default:
			return nil, fmt.Errorf("line %d: expected a \"prefix:\" header or a \"- \" entry, got %q", n, line)
		}
	}
	if err := closeBlock(len(lines)); err != nil {
		return nil, err
	}
	return m, nil
}
