/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package changelog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassifier(t *testing.T) {
	tests := []struct {
		line      string
		wantLine  string
		wantEntry bool
		wantState State
	}{
		{line: "  - feat: a  ", wantLine: "- feat: a", wantEntry: true, wantState: Outside},
		{line: "", wantState: Outside},
		{line: "   ", wantState: Outside},
		{line: "### heading", wantState: Outside},
		{line: "<!-- open", wantState: InsideComment},
		{line: "- feat: hidden", wantState: InsideComment},
		{line: "## also hidden", wantState: InsideComment},
		{line: "close -->", wantState: Outside},
		{line: "- fix: b", wantLine: "- fix: b", wantEntry: true, wantState: Outside},
		{line: "<!-- one line -->", wantState: Outside},
		{line: "- fix: c", wantLine: "- fix: c", wantEntry: true, wantState: Outside},
		{line: "--> stray close", wantState: Outside},
		{line: "--> reopen <!--", wantState: InsideComment},
	}

	// The cases run in order against one classifier.
	var c Classifier
	for i, tt := range tests {
		gotLine, gotEntry := c.Classify(tt.line)
		if gotLine != tt.wantLine || gotEntry != tt.wantEntry {
			t.Errorf("%d: Classify(%q) = (%q, %v), want (%q, %v)", i, tt.line, gotLine, gotEntry, tt.wantLine, tt.wantEntry)
		}
		if c.State() != tt.wantState {
			t.Errorf("%d: state after %q = %s, want %s", i, tt.line, c.State(), tt.wantState)
		}
	}
}

func TestEntryLinesExcludesCommentBlocks(t *testing.T) {
	// Anything between the markers is dropped, whatever it looks like.
	for _, hidden := range []string{"- feat: x", "feat: x", "- skip", "## heading", "garbage"} {
		section := "\n- fix: before\n<!--\n" + hidden + "\n-->\n- fix: after\n"
		got := EntryLines(section)
		want := []string{"- fix: before", "- fix: after"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("EntryLines(%q) mismatch (-want +got):\n%s", hidden, diff)
		}
	}
}
