/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubforge implements the reconciler's Forge on top of the GitHub
// REST API.
package githubforge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"

	"github.com/chainguard-dev/changeset-bot/pkg/httpmetrics"
	"github.com/chainguard-dev/changeset-bot/pkg/httpratelimit"
	"github.com/chainguard-dev/changeset-bot/pkg/reconciler"
)

// ClientSource returns a GitHub client authorized for a repository.
type ClientSource interface {
	Get(ctx context.Context, owner, repo string) (*github.Client, error)
}

// Static is a ClientSource that always returns the same client.
type Static struct{ *github.Client }

// Get implements ClientSource.
func (s Static) Get(context.Context, string, string) (*github.Client, error) {
	return s.Client, nil
}

// Transport is the transport chain every GitHub client shares: metrics on
// the outside, rate limit backoff next to the network.
func Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return httpmetrics.WrapTransport(httpratelimit.NewTransport(base))
}

// Forge talks to GitHub on behalf of the engine.
type Forge struct {
	repos ClientSource
	app   *App
	name  string
}

var _ reconciler.Forge = (*Forge)(nil)

// Option configures a Forge.
type Option func(*Forge)

// WithApp writes fragments through the app's installation on the head
// repository, and makes Installation look the installation up.
func WithApp(app *App) Option {
	return func(f *Forge) { f.app = app }
}

// WithName sets the name embedded in the bot's comment marker.
func WithName(name string) Option {
	return func(f *Forge) { f.name = name }
}

// New returns a Forge that reads pull requests, labels and comments with
// clients from repos.
func New(repos ClientSource, opts ...Option) *Forge {
	f := &Forge{repos: repos, name: "changeset-bot"}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Forge) marker() string {
	return fmt.Sprintf("<!-- bot:%s -->", f.name)
}

// artifactClient returns the client for the head repository's contents:
// the app's installation when it is active there, otherwise the base
// repository's credentials, which can still read a public fork.
func (f *Forge) artifactClient(ctx context.Context, owner, repo string) (*github.Client, error) {
	if f.app != nil {
		inst, err := f.installation(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		if inst != nil && inst.SuspendedAt == nil {
			return f.app.Client(ctx, inst.GetID())
		}
	}
	return f.repos.Get(ctx, owner, repo)
}

// installation returns nil when the app is not installed on owner/repo.
func (f *Forge) installation(ctx context.Context, owner, repo string) (*github.Installation, error) {
	inst, err := f.app.Installation(ctx, owner, repo)
	switch {
	case isNotFound(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("finding installation on %s/%s: %w", owner, repo, err)
	}
	return inst, nil
}

// Installation implements reconciler.Forge.
func (f *Forge) Installation(ctx context.Context, owner, repo string) (reconciler.Installation, error) {
	if f.app == nil {
		clog.FromContext(ctx).Debug("No app configured, reporting no installation")
		return reconciler.NotInstalled, nil
	}
	inst, err := f.installation(ctx, owner, repo)
	switch {
	case err != nil:
		return reconciler.NotInstalled, err
	case inst == nil:
		return reconciler.NotInstalled, nil
	case inst.SuspendedAt != nil:
		clog.FromContext(ctx).With("installation", inst.GetID()).Info("App installation is suspended")
		return reconciler.Suspended, nil
	}
	return reconciler.Installed, nil
}

// ReadArtifact implements reconciler.Forge.
func (f *Forge) ReadArtifact(ctx context.Context, owner, repo, branch, path string) (string, error) {
	gh, err := f.artifactClient(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	file, _, err := f.getFile(ctx, gh, owner, repo, branch, path)
	if err != nil {
		return "", err
	}
	return file.GetContent()
}

func (f *Forge) getFile(ctx context.Context, gh *github.Client, owner, repo, branch, path string) (*github.RepositoryContent, *github.Response, error) {
	file, _, resp, err := gh.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		if isNotFound(err) {
			return nil, resp, reconciler.ErrArtifactNotFound
		}
		return nil, resp, fmt.Errorf("getting %s@%s:%s: %w", repo, branch, path, err)
	}
	if file == nil {
		// A directory lives at path.
		return nil, resp, fmt.Errorf("%s is not a file", path)
	}
	return file, resp, nil
}

// WriteArtifact implements reconciler.Forge.
func (f *Forge) WriteArtifact(ctx context.Context, owner, repo, branch, path, content, message string) error {
	gh, err := f.artifactClient(ctx, owner, repo)
	if err != nil {
		return err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: []byte(content),
		Branch:  github.Ptr(branch),
	}

	existing, _, err := f.getFile(ctx, gh, owner, repo, branch, path)
	switch {
	case errors.Is(err, reconciler.ErrArtifactNotFound):
		if _, _, err := gh.Repositories.CreateFile(ctx, owner, repo, path, opts); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	case err != nil:
		return err
	default:
		opts.SHA = existing.SHA
		if _, _, err := gh.Repositories.UpdateFile(ctx, owner, repo, path, opts); err != nil {
			return fmt.Errorf("updating %s: %w", path, err)
		}
	}
	clog.FromContext(ctx).With("path", path, "branch", branch).Info("Wrote changeset file")
	return nil
}

// DeleteArtifact implements reconciler.Forge.
func (f *Forge) DeleteArtifact(ctx context.Context, owner, repo, branch, path, message string) (bool, error) {
	gh, err := f.artifactClient(ctx, owner, repo)
	if err != nil {
		return false, err
	}

	existing, _, err := f.getFile(ctx, gh, owner, repo, branch, path)
	if errors.Is(err, reconciler.ErrArtifactNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	if _, _, err := gh.Repositories.DeleteFile(ctx, owner, repo, path, &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		SHA:     existing.SHA,
		Branch:  github.Ptr(branch),
	}); err != nil {
		if isNotFound(err) {
			// Removed between the read and the delete.
			return false, nil
		}
		return false, fmt.Errorf("deleting %s: %w", path, err)
	}
	clog.FromContext(ctx).With("path", path, "branch", branch).Info("Deleted changeset file")
	return true, nil
}

// ArtifactInCommittedChanges implements reconciler.Forge. Files the pull
// request removes do not count.
func (f *Forge) ArtifactInCommittedChanges(ctx context.Context, owner, repo string, number int, path string) (bool, error) {
	gh, err := f.repos.Get(ctx, owner, repo)
	if err != nil {
		return false, err
	}

	opts := &github.ListOptions{PerPage: 100}
	for {
		files, resp, err := gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return false, fmt.Errorf("listing files of %s/%s#%d: %w", owner, repo, number, err)
		}
		for _, file := range files {
			if file.GetFilename() == path && file.GetStatus() != "removed" {
				return true, nil
			}
		}
		if resp.NextPage == 0 {
			return false, nil
		}
		opts.Page = resp.NextPage
	}
}

// SetLabel implements reconciler.Forge.
func (f *Forge) SetLabel(ctx context.Context, owner, repo string, number int, label string, present bool) error {
	gh, err := f.repos.Get(ctx, owner, repo)
	if err != nil {
		return err
	}

	has, err := hasLabel(ctx, gh, owner, repo, number, label)
	if err != nil {
		return err
	}
	log := clog.FromContext(ctx).With("label", label)

	switch {
	case present && !has:
		if _, _, err := gh.Issues.AddLabelsToIssue(ctx, owner, repo, number, []string{label}); err != nil {
			return fmt.Errorf("adding label %q: %w", label, err)
		}
		log.Info("Added label")
	case !present && has:
		if _, err := gh.Issues.RemoveLabelForIssue(ctx, owner, repo, number, label); err != nil && !isNotFound(err) {
			return fmt.Errorf("removing label %q: %w", label, err)
		}
		log.Info("Removed label")
	default:
		log.Debug("Label already in the desired state, nothing to do")
	}
	return nil
}

func hasLabel(ctx context.Context, gh *github.Client, owner, repo string, number int, label string) (bool, error) {
	opts := &github.ListOptions{PerPage: 100}
	for {
		labels, resp, err := gh.Issues.ListLabelsByIssue(ctx, owner, repo, number, opts)
		if err != nil {
			return false, fmt.Errorf("listing labels of %s/%s#%d: %w", owner, repo, number, err)
		}
		for _, l := range labels {
			if strings.EqualFold(l.GetName(), label) {
				return true, nil
			}
		}
		if resp.NextPage == 0 {
			return false, nil
		}
		opts.Page = resp.NextPage
	}
}

// PostComment implements reconciler.Forge. The bot keeps a single comment per
// pull request, found by a hidden marker, and edits it in place.
func (f *Forge) PostComment(ctx context.Context, owner, repo string, number int, body string) error {
	gh, err := f.repos.Get(ctx, owner, repo)
	if err != nil {
		return err
	}

	marked := f.marker() + "\n" + body
	existing, err := f.findComment(ctx, gh, owner, repo, number)
	if err != nil {
		return err
	}

	log := clog.FromContext(ctx)
	if existing == nil {
		if _, _, err := gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: github.Ptr(marked)}); err != nil {
			return fmt.Errorf("creating comment: %w", err)
		}
		log.Info("Created comment")
		return nil
	}
	if existing.GetBody() == marked {
		log.Debug("Comment is up to date, nothing to do")
		return nil
	}
	if _, _, err := gh.Issues.EditComment(ctx, owner, repo, existing.GetID(), &github.IssueComment{Body: github.Ptr(marked)}); err != nil {
		return fmt.Errorf("editing comment %d: %w", existing.GetID(), err)
	}
	log.With("comment", existing.GetID()).Info("Updated comment")
	return nil
}

func (f *Forge) findComment(ctx context.Context, gh *github.Client, owner, repo string, number int) (*github.IssueComment, error) {
	marker := f.marker()
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing comments of %s/%s#%d: %w", owner, repo, number, err)
		}
		for _, c := range comments {
			if strings.HasPrefix(c.GetBody(), marker) {
				return c, nil
			}
		}
		if resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}
