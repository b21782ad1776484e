/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reconciler

import (
	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
	"github.com/chainguard-dev/changeset-bot/pkg/changeset"
)

// SkipAction is what happens to an existing fragment when skip is declared.
type SkipAction int

const (
	KeepArtifact SkipAction = iota
	DeleteArtifact
)

// DecideSkip chooses the fragment action for a skip declaration. In manual
// mode a leftover fragment is the author's to remove.
func DecideSkip(cfg Config, mode Mode, number int, exists bool) (SkipAction, error) {
	switch {
	case !exists:
		return KeepArtifact, nil
	case mode == Automatic:
		return DeleteArtifact, nil
	default:
		return KeepArtifact, changelog.ErrArtifactMustNotExistWithSkip(changeset.FileName(number), cfg.ArtifactDir)
	}
}
