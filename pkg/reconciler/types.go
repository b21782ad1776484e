/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reconciler

import (
	"context"
	"errors"

	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
)

// ErrArtifactNotFound is returned by Forge.ReadArtifact when there is no file.
var ErrArtifactNotFound = errors.New("artifact not found")

// Forge is the set of repository operations the engine drives.
type Forge interface {
	// Installation reports the state of the automation app on the
	// repository.
	Installation(ctx context.Context, owner, repo string) (Installation, error)

	ReadArtifact(ctx context.Context, owner, repo, branch, path string) (string, error)
	WriteArtifact(ctx context.Context, owner, repo, branch, path, content, message string) error
	// DeleteArtifact reports whether a file was removed. A missing file is
	// not an error.
	DeleteArtifact(ctx context.Context, owner, repo, branch, path, message string) (bool, error)
	ArtifactInCommittedChanges(ctx context.Context, owner, repo string, number int, path string) (bool, error)

	// SetLabel adds or removes a label, doing nothing when it is already in
	// the requested state.
	SetLabel(ctx context.Context, owner, repo string, number int, label string, present bool) error
	// PostComment creates the bot's comment on the pull request, or replaces
	// it when one already exists.
	PostComment(ctx context.Context, owner, repo string, number int, body string) error
}

// Installation is the state of the automation app on a repository.
type Installation int

const (
	NotInstalled Installation = iota
	Suspended
	Installed
)

func (i Installation) String() string {
	switch i {
	case Installed:
		return "installed"
	case Suspended:
		return "suspended"
	}
	return "not_installed"
}

// PullRequest is everything the engine knows about the pull request under
// reconciliation. Labels and comments go to the base repository, fragments
// to the head branch.
type PullRequest struct {
	BaseOwner  string
	BaseRepo   string
	BaseBranch string

	HeadOwner  string
	HeadRepo   string
	HeadBranch string

	Number      int
	Description string
	Link        string

	// Action is the webhook action that triggered the run (opened, edited, ...).
	Action string
}

// Mode selects who writes the fragment.
type Mode int

const (
	// Manual means the author commits the fragment and the bot only checks it.
	Manual Mode = iota
	// Automatic means the bot writes the fragment to the head branch.
	Automatic
)

func (m Mode) String() string {
	if m == Automatic {
		return "automatic"
	}
	return "manual"
}

// Outcome is the terminal state of a reconciliation.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	// OutcomeArtifactWritten: the fragment matches the description.
	OutcomeArtifactWritten
	// OutcomeSkipped: skip was declared and no fragment is left behind.
	OutcomeSkipped
	// OutcomeWaitingForManualArtifact: the author was reminded to commit the fragment.
	OutcomeWaitingForManualArtifact
	// OutcomeArtifactPresent: manual mode, the fragment is part of the PR.
	OutcomeArtifactPresent
	// OutcomeValidationFailed: the author has something to fix.
	OutcomeValidationFailed
	// OutcomeInfrastructureFailed: the forge could not be read or written.
	OutcomeInfrastructureFailed
)

var outcomeNames = map[Outcome]string{
	OutcomeUnknown:                  "unknown",
	OutcomeArtifactWritten:          "artifact_written",
	OutcomeSkipped:                  "skipped",
	OutcomeWaitingForManualArtifact: "waiting_for_manual_artifact",
	OutcomeArtifactPresent:          "artifact_present",
	OutcomeValidationFailed:         "validation_failed",
	OutcomeInfrastructureFailed:     "infrastructure_failed",
}

func (o Outcome) String() string { return outcomeNames[o] }

// Success reports whether the pull request is in a mergeable changelog state.
func (o Outcome) Success() bool {
	switch o {
	case OutcomeArtifactWritten, OutcomeSkipped, OutcomeArtifactPresent:
		return true
	}
	return false
}

// Result describes what a reconciliation did.
type Result struct {
	Mode    Mode
	Outcome Outcome

	// Changed is true when the fragment was created, updated or deleted.
	Changed bool

	// Err is the validation failure reported to the author.
	Err *changelog.ContentError
}
