/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package reconcilertest provides an in-memory Forge for tests.
package reconcilertest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/chainguard-dev/changeset-bot/pkg/reconciler"
)

// Operation names, used as keys of Forge.Errors and in Forge.Calls.
const (
	OpInstallation = "Installation"
	OpRead         = "ReadArtifact"
	OpWrite        = "WriteArtifact"
	OpDelete       = "DeleteArtifact"
	OpCommitted    = "ArtifactInCommittedChanges"
	OpSetLabel     = "SetLabel"
	OpComment      = "PostComment"
)

// Forge is an in-memory reconciler.Forge. Only mutations that change state
// are recorded in Calls, so a second identical run leaves Calls untouched.
type Forge struct {
	mu sync.Mutex

	// Installed holds "owner/repo" keys with an active installation.
	Installed map[string]bool
	// Suspended holds "owner/repo" keys whose installation is suspended.
	Suspended map[string]bool
	// Files holds fragment contents keyed by FileKey.
	Files map[string]string
	// Committed holds the paths changed by each pull request.
	Committed map[int][]string
	// Labels holds the labels of each pull request.
	Labels map[int][]string
	// Comments holds the bot's comment on each pull request.
	Comments map[int]string

	// Errors makes the named operation fail.
	Errors map[string]error

	Calls []string
}

var _ reconciler.Forge = (*Forge)(nil)

// New returns an empty Forge.
func New() *Forge {
	return &Forge{
		Installed: map[string]bool{},
		Suspended: map[string]bool{},
		Files:     map[string]string{},
		Committed: map[int][]string{},
		Labels:    map[int][]string{},
		Comments:  map[int]string{},
		Errors:    map[string]error{},
	}
}

// FileKey identifies a file on a branch.
func FileKey(owner, repo, branch, path string) string {
	return fmt.Sprintf("%s/%s@%s:%s", owner, repo, branch, path)
}

func (f *Forge) Installation(_ context.Context, owner, repo string) (reconciler.Installation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors[OpInstallation]; err != nil {
		return reconciler.NotInstalled, err
	}
	switch key := owner + "/" + repo; {
	case f.Installed[key]:
		return reconciler.Installed, nil
	case f.Suspended[key]:
		return reconciler.Suspended, nil
	}
	return reconciler.NotInstalled, nil
}

func (f *Forge) ReadArtifact(_ context.Context, owner, repo, branch, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors[OpRead]; err != nil {
		return "", err
	}
	content, ok := f.Files[FileKey(owner, repo, branch, path)]
	if !ok {
		return "", reconciler.ErrArtifactNotFound
	}
	return content, nil
}

func (f *Forge) WriteArtifact(_ context.Context, owner, repo, branch, path, content, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors[OpWrite]; err != nil {
		return err
	}
	f.Files[FileKey(owner, repo, branch, path)] = content
	f.Calls = append(f.Calls, fmt.Sprintf("%s %s %q", OpWrite, path, message))
	return nil
}

func (f *Forge) DeleteArtifact(_ context.Context, owner, repo, branch, path, message string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors[OpDelete]; err != nil {
		return false, err
	}
	key := FileKey(owner, repo, branch, path)
	if _, ok := f.Files[key]; !ok {
		return false, nil
	}
	delete(f.Files, key)
	f.Calls = append(f.Calls, fmt.Sprintf("%s %s %q", OpDelete, path, message))
	return true, nil
}

func (f *Forge) ArtifactInCommittedChanges(_ context.Context, _, _ string, number int, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors[OpCommitted]; err != nil {
		return false, err
	}
	return slices.Contains(f.Committed[number], path), nil
}

func (f *Forge) SetLabel(_ context.Context, _, _ string, number int, label string, present bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors[OpSetLabel]; err != nil {
		return err
	}
	has := slices.Contains(f.Labels[number], label)
	switch {
	case present && !has:
		f.Labels[number] = append(f.Labels[number], label)
		f.Calls = append(f.Calls, fmt.Sprintf("AddLabel %q", label))
	case !present && has:
		f.Labels[number] = slices.DeleteFunc(f.Labels[number], func(l string) bool { return l == label })
		f.Calls = append(f.Calls, fmt.Sprintf("RemoveLabel %q", label))
	}
	return nil
}

func (f *Forge) PostComment(_ context.Context, _, _ string, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors[OpComment]; err != nil {
		return err
	}
	if f.Comments[number] == body {
		return nil
	}
	f.Comments[number] = body
	f.Calls = append(f.Calls, OpComment)
	return nil
}

// HasLabel reports whether the pull request carries the label.
func (f *Forge) HasLabel(number int, label string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.Labels[number], label)
}

// ResetCalls clears the recorded calls.
func (f *Forge) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
}
