/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package changelog

import "strings"

const (
	commentOpen  = "<!--"
	commentClose = "-->"
)

// State is the position of the classifier relative to an HTML comment block.
type State int

const (
	Outside State = iota
	InsideComment
)

func (s State) String() string {
	if s == InsideComment {
		return "InsideComment"
	}
	return "Outside"
}

// Classifier walks a changelog section one line at a time and decides which
// lines are entries. The zero value starts Outside.
type Classifier struct {
	state State
}

// State returns the state carried into the next line.
func (c *Classifier) State() State { return c.state }

// Classify consumes one line. It returns the trimmed line and true when the
// line is an entry candidate.
func (c *Classifier) Classify(line string) (string, bool) {
	if open := strings.Index(line, commentOpen); open >= 0 {
		c.state = InsideComment
		// A comment that opens and closes on the same line does not carry over.
		if strings.Contains(line[open+len(commentOpen):], commentClose) {
			c.state = Outside
		}
		return "", false
	}
	if strings.Contains(line, commentClose) {
		c.state = Outside
		return "", false
	}
	if c.state == InsideComment {
		return "", false
	}

	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	return trimmed, true
}

// EntryLines returns the entry candidates of a section body, in order.
func EntryLines(section string) []string {
	var (
		c     Classifier
		lines []string
	)
	for _, line := range strings.Split(section, "\n") {
		if l, ok := c.Classify(line); ok {
			lines = append(lines, l)
		}
	}
	return lines
}
