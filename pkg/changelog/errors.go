/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package changelog

import (
	"errors"
	"fmt"
)

// Kind identifies a failure in the changelog pipeline.
type Kind int

const (
	// Content failures. These are caused by what the author wrote (or did not
	// commit) and are always reported back on the pull request.
	InvalidHeading Kind = iota + 1
	EmptyChangelogSection
	MissingEntryMarker
	InvalidPrefix
	EmptyEntryDescription
	EntryTooLong
	CategoryWithSkipOption
	ArtifactMustNotExistWithSkip
	ArtifactNotAddedYet

	// Infrastructure failures. These come from talking to the forge and say
	// nothing about the content of the pull request.
	ArtifactAccessError
	ArtifactWriteError
	ArtifactDeleteError
	PullRequestDataExtractionError
	InstallationLookupError
	ForgeError
)

var kindNames = map[Kind]string{
	InvalidHeading:                 "InvalidHeading",
	EmptyChangelogSection:          "EmptyChangelogSection",
	MissingEntryMarker:             "MissingEntryMarker",
	InvalidPrefix:                  "InvalidPrefix",
	EmptyEntryDescription:          "EmptyEntryDescription",
	EntryTooLong:                   "EntryTooLong",
	CategoryWithSkipOption:         "CategoryWithSkipOption",
	ArtifactMustNotExistWithSkip:   "ArtifactMustNotExistWithSkip",
	ArtifactNotAddedYet:            "ArtifactNotAddedYet",
	ArtifactAccessError:            "ArtifactAccessError",
	ArtifactWriteError:             "ArtifactWriteError",
	ArtifactDeleteError:            "ArtifactDeleteError",
	PullRequestDataExtractionError: "PullRequestDataExtractionError",
	InstallationLookupError:        "InstallationLookupError",
	ForgeError:                     "ForgeError",
}

var kindTitles = map[Kind]string{
	InvalidHeading:                 "Invalid Changelog Heading",
	EmptyChangelogSection:          "Empty Changelog Section",
	MissingEntryMarker:             "Changelog Entry Missing Hyphen",
	InvalidPrefix:                  "Invalid Prefix For Changelog Entry",
	EmptyEntryDescription:          "Empty Description For Changelog Entry",
	EntryTooLong:                   "Entry Too Long",
	CategoryWithSkipOption:         "Category With Skip Option",
	ArtifactMustNotExistWithSkip:   "Changeset File Must Not Exist With Skip Entry Option",
	ArtifactNotAddedYet:            "Manual Changeset Not Added Yet",
	ArtifactAccessError:            "Get Content Error",
	ArtifactWriteError:             "Create Or Update Content Error",
	ArtifactDeleteError:            "Delete Content Error",
	PullRequestDataExtractionError: "Pull Request Data Extraction Error",
	InstallationLookupError:        "App Installation Lookup Error",
	ForgeError:                     "Forge Error",
}

// infrastructureMessages are safe to show to a PR author; the cause is only logged.
var infrastructureMessages = map[Kind]string{
	ArtifactAccessError:            "Error retrieving content from repository",
	ArtifactWriteError:             "Error creating or updating content in repository",
	ArtifactDeleteError:            "Error deleting content in repository",
	PullRequestDataExtractionError: "Error extracting data from Pull Request",
	InstallationLookupError:        "Error fetching GitHub App installation info from head repository",
	ForgeError:                     "Error updating labels or comments on Pull Request",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Title is the heading used when the failure is reported in a comment.
func (k Kind) Title() string {
	if s, ok := kindTitles[k]; ok {
		return s
	}
	return k.String()
}

// ContentError is a user-actionable validation failure.
type ContentError struct {
	Kind    Kind
	Message string

	// Detail fields, set depending on Kind.
	Prefix string
	Length int
	Max    int
}

func (e *ContentError) Error() string { return e.Message }

// InfrastructureError is an operational failure unrelated to the content of
// the pull request.
type InfrastructureError struct {
	Kind Kind
	Err  error
}

func (e *InfrastructureError) Error() string {
	if e.Err == nil {
		return e.Message()
	}
	return fmt.Sprintf("%s: %v", e.Message(), e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// Message is the generic description of the failure, without its cause.
func (e *InfrastructureError) Message() string {
	if s, ok := infrastructureMessages[e.Kind]; ok {
		return s
	}
	return e.Kind.String()
}

// Infrastructure wraps err as an InfrastructureError of the given kind.
func Infrastructure(kind Kind, err error) error {
	return &InfrastructureError{Kind: kind, Err: err}
}

// AsContentError reports whether err is (or wraps) a ContentError.
func AsContentError(err error) (*ContentError, bool) {
	var ce *ContentError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// AsInfrastructureError reports whether err is (or wraps) an InfrastructureError.
func AsInfrastructureError(err error) (*InfrastructureError, bool) {
	var ie *InfrastructureError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind, in either class.
func IsKind(err error, kind Kind) bool {
	if ce, ok := AsContentError(err); ok {
		return ce.Kind == kind
	}
	if ie, ok := AsInfrastructureError(err); ok {
		return ie.Kind == kind
	}
	return false
}

func errInvalidHeading(heading string) *ContentError {
	return &ContentError{
		Kind: InvalidHeading,
		Message: fmt.Sprintf("The '%s' heading in your PR description is either missing or malformed. "+
			"Please make sure that your PR description includes a '%s' heading with proper spelling, "+
			"capitalization, spacing, and Markdown syntax.", heading, heading),
	}
}

func errEmptySection() *ContentError {
	return &ContentError{
		Kind:    EmptyChangelogSection,
		Message: "The Changelog section in your PR description is empty. Please add a valid changelog entry or entries.",
	}
}

func errMissingMarker() *ContentError {
	return &ContentError{
		Kind:    MissingEntryMarker,
		Message: "Changelog entries must begin with a hyphen (-).",
	}
}

func errInvalidPrefix(found string, t Taxonomy) *ContentError {
	return &ContentError{
		Kind:    InvalidPrefix,
		Prefix:  found,
		Message: fmt.Sprintf("Invalid description prefix. Found %q. Expected %s.", found, t.Expected()),
	}
}

func errEmptyDescription(prefix Prefix) *ContentError {
	return &ContentError{
		Kind:    EmptyEntryDescription,
		Prefix:  string(prefix),
		Message: fmt.Sprintf("Description for %q entry cannot be empty.", prefix),
	}
}

func errTooLong(length, limit int) *ContentError {
	return &ContentError{
		Kind:   EntryTooLong,
		Length: length,
		Max:    limit,
		Message: fmt.Sprintf("Entry is %d characters long, which is %d character(s) longer than the maximum allowed length of %d characters.",
			length, length-limit, limit),
	}
}

// ErrCategoryWithSkip is returned when skip is declared next to a category.
func ErrCategoryWithSkip() *ContentError {
	return &ContentError{
		Kind:    CategoryWithSkipOption,
		Message: "Cannot include a category entry with 'skip' option",
	}
}

// ErrArtifactMustNotExistWithSkip is returned in manual mode when the author
// declared skip but the changeset file is still present.
func ErrArtifactMustNotExistWithSkip(file, dir string) *ContentError {
	return &ContentError{
		Kind: ArtifactMustNotExistWithSkip,
		Message: fmt.Sprintf("Changeset file _%s_ under folder _%s_ must not exist if the changelog section "+
			"in PR description includes a \"skip\" entry option. Please remove the file and try again.", file, dir),
	}
}

// ErrArtifactNotAddedYet is returned in manual mode when the changeset file is
// not part of the pull request's changes.
func ErrArtifactNotAddedYet(file, dir string) *ContentError {
	return &ContentError{
		Kind: ArtifactNotAddedYet,
		Message: fmt.Sprintf("Please ensure **manual commit for changeset file _%s_** under folder _%s_ "+
			"to complete this PR. File still missing.", file, dir),
	}
}
