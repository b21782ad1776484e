/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package changelog

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSection(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name    string
		desc    string
		want    string
		wantErr bool
	}{{
		name: "section until next heading",
		desc: "intro\n## Changelog\n- feat: add x\n## Next\n- fix: not mine",
		want: "\n- feat: add x",
	}, {
		name: "section until end of text",
		desc: "## Changelog\n- feat: add x\n",
		want: "\n- feat: add x\n",
	}, {
		name: "empty section",
		desc: "## Changelog\n## Testing\n- fix: not mine",
		want: "",
	}, {
		name:    "empty description",
		desc:    "",
		wantErr: true,
	}, {
		name:    "whitespace description",
		desc:    "  \n\t",
		wantErr: true,
	}, {
		name:    "missing heading",
		desc:    "Just some text\n- feat: add x",
		wantErr: true,
	}, {
		name:    "wrong case",
		desc:    "## changelog\n- feat: add x",
		wantErr: true,
	}, {
		name:    "missing space",
		desc:    "##Changelog\n- feat: add x",
		wantErr: true,
	}, {
		name:    "misspelled",
		desc:    "## Chnagelog\n- feat: add x",
		wantErr: true,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Section(tt.desc)
			if tt.wantErr {
				if !IsKind(err, InvalidHeading) {
					t.Fatalf("Section() error = %v, want InvalidHeading", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Section() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Section() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEntry(t *testing.T) {
	p := NewParser()

	tests := []struct {
		line    string
		want    Entry
		wantErr *ContentError
	}{{
		line: "- feat: add x",
		want: Entry{Prefix: Feat, Description: "Add x"},
	}, {
		line: "-fix:bug y",
		want: Entry{Prefix: Fix, Description: "Bug y"},
	}, {
		line: "- FEAT: Already capitalized",
		want: Entry{Prefix: Feat, Description: "Already capitalized"},
	}, {
		line: "- doc: keep the REST unchanged",
		want: Entry{Prefix: Doc, Description: "Keep the REST unchanged"},
	}, {
		line: "- skip",
		want: Entry{Prefix: Skip},
	}, {
		line: "- SKIP: whatever follows is ignored",
		want: Entry{Prefix: Skip},
	}, {
		line:    "feat: no marker",
		wantErr: &ContentError{Kind: MissingEntryMarker},
	}, {
		line:    "* feat: wrong marker",
		wantErr: &ContentError{Kind: MissingEntryMarker},
	}, {
		line:    "- feature: add x",
		wantErr: &ContentError{Kind: InvalidPrefix, Prefix: "feature"},
	}, {
		line:    "- : add x",
		wantErr: &ContentError{Kind: InvalidPrefix, Prefix: ""},
	}, {
		line:    "- fix:",
		wantErr: &ContentError{Kind: EmptyEntryDescription, Prefix: "fix"},
	}, {
		line:    "- fix:    ",
		wantErr: &ContentError{Kind: EmptyEntryDescription, Prefix: "fix"},
	}, {
		line:    "- chore",
		wantErr: &ContentError{Kind: EmptyEntryDescription, Prefix: "chore"},
	}}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := p.Entry(tt.line)
			if tt.wantErr != nil {
				ce, ok := AsContentError(err)
				if !ok {
					t.Fatalf("Entry() error = %v, want ContentError", err)
				}
				if ce.Kind != tt.wantErr.Kind || ce.Prefix != tt.wantErr.Prefix {
					t.Errorf("Entry() error = %s(%q), want %s(%q)", ce.Kind, ce.Prefix, tt.wantErr.Kind, tt.wantErr.Prefix)
				}
				return
			}
			if err != nil {
				t.Fatalf("Entry() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Entry() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEntryLength(t *testing.T) {
	p := NewParser()

	atMax := strings.Repeat("a", DefaultMaxEntryLength)
	if _, err := p.Entry("- feat: " + atMax); err != nil {
		t.Errorf("Entry() with %d characters: %v", DefaultMaxEntryLength, err)
	}

	_, err := p.Entry("- feat: " + atMax + "b")
	ce, ok := AsContentError(err)
	if !ok || ce.Kind != EntryTooLong {
		t.Fatalf("Entry() error = %v, want EntryTooLong", err)
	}
	if ce.Length != 101 || ce.Max != 100 {
		t.Errorf("EntryTooLong(%d, %d), want (101, 100)", ce.Length, ce.Max)
	}
	want := "Entry is 101 characters long, which is 1 character(s) longer than the maximum allowed length of 100 characters."
	if ce.Message != want {
		t.Errorf("message = %q, want %q", ce.Message, want)
	}

	// Length counts characters, not bytes.
	if _, err := p.Entry("- feat: " + strings.Repeat("é", DefaultMaxEntryLength)); err != nil {
		t.Errorf("Entry() with multibyte description: %v", err)
	}

	short := NewParser(WithMaxEntryLength(5))
	if _, err := short.Entry("- fix: abcdef"); !IsKind(err, EntryTooLong) {
		t.Errorf("Entry() error = %v, want EntryTooLong", err)
	}
}

func TestInvalidPrefixMessage(t *testing.T) {
	_, err := NewParser().Entry("- feature: x")
	want := `Invalid description prefix. Found "feature". Expected "breaking", "deprecate", "feat", "fix", "infra", "doc", "chore", "refactor", "security", "test", or "skip".`
	if err == nil || err.Error() != want {
		t.Errorf("error = %v, want %s", err, want)
	}
}

func TestParse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name     string
		desc     string
		want     []Entry
		wantKind Kind
	}{{
		name: "two entries",
		desc: "## Changelog\n- feat: add x\n- fix: bug y\n## Next",
		want: []Entry{
			{Prefix: Feat, Description: "Add x"},
			{Prefix: Fix, Description: "Bug y"},
		},
	}, {
		name: "comment block excluded",
		desc: "## Changelog\n<!--\nfeat: hidden\n-->\n- fix: bug y\n## Next",
		want: []Entry{{Prefix: Fix, Description: "Bug y"}},
	}, {
		name: "template comment on one line",
		desc: "## Changelog\n<!-- Add entries below -->\n- fix: bug y",
		want: []Entry{{Prefix: Fix, Description: "Bug y"}},
	}, {
		name: "crlf line endings",
		desc: "## Changelog\r\n- feat: add x\r\n\r\n## Next\r\n",
		want: []Entry{{Prefix: Feat, Description: "Add x"}},
	}, {
		name: "indented headings ignored",
		desc: "## Changelog\n  ## Notes\n- chore: tidy",
		want: []Entry{{Prefix: Chore, Description: "Tidy"}},
	}, {
		name:     "no heading",
		desc:     "- feat: add x",
		wantKind: InvalidHeading,
	}, {
		name:     "empty section",
		desc:     "## Changelog\n\n<!-- - feat: x -->\n\n## Next",
		wantKind: EmptyChangelogSection,
	}, {
		name:     "first invalid entry aborts",
		desc:     "## Changelog\n- feat: add x\n- nope: y\n- fix",
		wantKind: InvalidPrefix,
	}, {
		name:     "line without marker",
		desc:     "## Changelog\nfeat: add x",
		wantKind: MissingEntryMarker,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.desc)
			if tt.wantKind != 0 {
				if !IsKind(err, tt.wantKind) {
					t.Fatalf("Parse() error = %v, want %s", err, tt.wantKind)
				}
				if got != nil {
					t.Errorf("Parse() returned partial entries: %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSkipRequested(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    bool
		wantErr bool
	}{
		{name: "none", entries: nil},
		{name: "category only", entries: []Entry{{Prefix: Feat, Description: "X"}}},
		{name: "skip only", entries: []Entry{{Prefix: Skip}}, want: true},
		{name: "repeated skip", entries: []Entry{{Prefix: Skip}, {Prefix: Skip}}, want: true},
		{name: "skip first", entries: []Entry{{Prefix: Skip}, {Prefix: Feat, Description: "X"}}, wantErr: true},
		{name: "skip last", entries: []Entry{{Prefix: Fix, Description: "X"}, {Prefix: Skip}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SkipRequested(tt.entries)
			if tt.wantErr {
				if !IsKind(err, CategoryWithSkipOption) {
					t.Fatalf("SkipRequested() error = %v, want CategoryWithSkipOption", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SkipRequested() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("SkipRequested() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorClasses(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("writing: %w", Infrastructure(ArtifactWriteError, cause))

	if _, ok := AsContentError(err); ok {
		t.Error("infrastructure error classified as content error")
	}
	ie, ok := AsInfrastructureError(err)
	if !ok {
		t.Fatal("AsInfrastructureError() = false")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if got, want := ie.Message(), "Error creating or updating content in repository"; got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
	if got, want := ErrCategoryWithSkip().Kind.Title(), "Category With Skip Option"; got != want {
		t.Errorf("Title() = %q, want %q", got, want)
	}
}
