/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package changeset builds and renders changeset fragments: the per-PR files
// that group changelog entries by prefix, e.g.
//
//	feat:
//	- Add x ([#123](https://github.com/org/repo/pull/123))
//
//	fix:
//	- Bug y ([#123](https://github.com/org/repo/pull/123))
package changeset

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
)

// DefaultDir is where fragments live in the repository.
const DefaultDir = "changelogs/fragments"

// Map is an ordered mapping from prefix to rendered lines. Prefixes keep
// the order of their first occurrence; lines keep source order.
type Map struct {
	order []changelog.Prefix
	lines map[changelog.Prefix][]string
}

// Build groups entries into a Map, rendering each as a line that links back
// to the pull request. Mixing skip with any other prefix is an error.
func Build(entries []changelog.Entry, number int, link string) (*Map, error) {
	if _, err := changelog.SkipRequested(entries); err != nil {
		return nil, err
	}

	m := &Map{lines: make(map[changelog.Prefix][]string, len(entries))}
	for _, e := range entries {
		if _, ok := m.lines[e.Prefix]; !ok {
			m.order = append(m.order, e.Prefix)
			m.lines[e.Prefix] = nil
		}
		if e.Prefix == changelog.Skip {
			continue
		}
		m.lines[e.Prefix] = append(m.lines[e.Prefix], Line(e.Description, number, link))
	}
	return m, nil
}

// Line renders one entry description.
func Line(description string, number int, link string) string {
	return fmt.Sprintf("- %s ([#%d](%s))", description, number, link)
}

// Prefixes returns the keys of m in order.
func (m *Map) Prefixes() []changelog.Prefix {
	return append([]changelog.Prefix(nil), m.order...)
}

// Lines returns the rendered lines for a prefix.
func (m *Map) Lines(p changelog.Prefix) []string {
	return append([]string(nil), m.lines[p]...)
}

// Len is the number of prefixes in m.
func (m *Map) Len() int { return len(m.order) }

// Skip reports whether m declares skip.
func (m *Map) Skip() bool {
	_, ok := m.lines[changelog.Skip]
	return ok
}

// Render returns the canonical fragment text: one block per prefix, blocks
// separated by a blank line, no trailing newline. Prefixes without lines
// (skip) are not rendered, so an empty or skip-only map renders to "".
func (m *Map) Render() string {
	blocks := make([]string, 0, len(m.order))
	for _, p := range m.order {
		lines := m.lines[p]
		if len(lines) == 0 {
			continue
		}
		blocks = append(blocks, string(p)+":\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// FileName is the name of the fragment for a pull request.
func FileName(number int) string {
	return strconv.Itoa(number) + ".yml"
}

// Path joins dir with the fragment file name for a pull request.
func Path(dir string, number int) string {
	return path.Join(dir, FileName(number))
}
