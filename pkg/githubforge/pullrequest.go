/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubforge

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/go-github/v75/github"

	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
	"github.com/chainguard-dev/changeset-bot/pkg/reconciler"
)

// FromEvent extracts the pull request under reconciliation from a
// pull_request webhook payload.
func FromEvent(ev *github.PullRequestEvent) (reconciler.PullRequest, error) {
	if ev == nil || ev.PullRequest == nil {
		return reconciler.PullRequest{}, extractionError(errors.New("event carries no pull request"))
	}
	pr, err := fromPullRequest(ev.PullRequest)
	if err != nil {
		return reconciler.PullRequest{}, err
	}
	pr.Action = ev.GetAction()
	return pr, nil
}

// FetchPullRequest reads a pull request through the API, for runs that are
// not driven by a webhook payload.
func FetchPullRequest(ctx context.Context, gh *github.Client, owner, repo string, number int) (reconciler.PullRequest, error) {
	pr, _, err := gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return reconciler.PullRequest{}, extractionError(fmt.Errorf("getting %s/%s#%d: %w", owner, repo, number, err))
	}
	return fromPullRequest(pr)
}

// ReadEventFile parses the pull_request payload GitHub Actions writes to
// GITHUB_EVENT_PATH.
func ReadEventFile(path string) (*github.PullRequestEvent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, extractionError(fmt.Errorf("reading event file: %w", err))
	}
	ev, err := github.ParseWebHook("pull_request", raw)
	if err != nil {
		return nil, extractionError(fmt.Errorf("parsing event file: %w", err))
	}
	pre, ok := ev.(*github.PullRequestEvent)
	if !ok {
		return nil, extractionError(fmt.Errorf("unexpected event type %T", ev))
	}
	return pre, nil
}

func fromPullRequest(pr *github.PullRequest) (reconciler.PullRequest, error) {
	base, head := pr.GetBase(), pr.GetHead()
	if base.GetRepo() == nil || head.GetRepo() == nil {
		return reconciler.PullRequest{}, extractionError(fmt.Errorf("pull request #%d is missing its base or head repository", pr.GetNumber()))
	}
	if pr.GetNumber() == 0 {
		return reconciler.PullRequest{}, extractionError(errors.New("pull request has no number"))
	}
	return reconciler.PullRequest{
		BaseOwner:   base.GetRepo().GetOwner().GetLogin(),
		BaseRepo:    base.GetRepo().GetName(),
		BaseBranch:  base.GetRef(),
		HeadOwner:   head.GetRepo().GetOwner().GetLogin(),
		HeadRepo:    head.GetRepo().GetName(),
		HeadBranch:  head.GetRef(),
		Number:      pr.GetNumber(),
		Description: pr.GetBody(),
		Link:        pr.GetHTMLURL(),
	}, nil
}

func extractionError(err error) error {
	return changelog.Infrastructure(changelog.PullRequestDataExtractionError, err)
}
