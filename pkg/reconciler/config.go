/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reconciler

import (
	"fmt"
	"strings"

	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
	"github.com/chainguard-dev/changeset-bot/pkg/changeset"
)

// Config holds every setting the engine needs. It is built once at start-up
// and passed by value.
type Config struct {
	Heading        string
	Taxonomy       changelog.Taxonomy
	MaxEntryLength int

	// ArtifactDir is the repository directory holding fragments.
	ArtifactDir string

	SkipLabel   string
	FailedLabel string

	// Used in the manual-mode reminder. Links are omitted when empty.
	AppName       string
	AppInstallURL string
	DocsName      string
	DocsURL       string
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		Heading:        changelog.DefaultHeading,
		Taxonomy:       changelog.DefaultTaxonomy,
		MaxEntryLength: changelog.DefaultMaxEntryLength,
		ArtifactDir:    changeset.DefaultDir,
		SkipLabel:      "Skip-Changelog",
		FailedLabel:    "failed changeset",
		AppName:        "changeset-bot",
		DocsName:       "changelog fragments",
	}
}

// Validate reports settings the engine cannot work with.
func (c Config) Validate() error {
	switch {
	case !strings.HasPrefix(c.Heading, "#"):
		return fmt.Errorf("heading %q must be a markdown heading", c.Heading)
	case c.MaxEntryLength <= 0:
		return fmt.Errorf("max entry length must be positive, got %d", c.MaxEntryLength)
	case strings.Trim(c.ArtifactDir, "/") == "":
		return fmt.Errorf("artifact directory must not be empty")
	case c.SkipLabel == "" || c.FailedLabel == "":
		return fmt.Errorf("skip and failed labels must be set")
	case c.SkipLabel == c.FailedLabel:
		return fmt.Errorf("skip and failed labels must differ, both are %q", c.SkipLabel)
	case len(c.Taxonomy.Prefixes()) == 0:
		return fmt.Errorf("taxonomy must not be empty")
	}
	return nil
}

func (c Config) parser() *changelog.Parser {
	return changelog.NewParser(
		changelog.WithHeading(c.Heading),
		changelog.WithTaxonomy(c.Taxonomy),
		changelog.WithMaxEntryLength(c.MaxEntryLength),
	)
}

// ArtifactPath is the repository path of the fragment for a pull request.
func (c Config) ArtifactPath(number int) string {
	return changeset.Path(strings.TrimSuffix(c.ArtifactDir, "/"), number)
}
