/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubreconciler runs the changelog engine against pull requests on
// GitHub, whether they arrive as webhook payloads or as URLs.
package githubreconciler

import (
	"context"
	"fmt"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"github.com/jonboulle/clockwork"

	"github.com/chainguard-dev/changeset-bot/pkg/githubforge"
	"github.com/chainguard-dev/changeset-bot/pkg/reconciler"
)

// DefaultAction is used for URL-driven runs, which have no webhook action.
const DefaultAction = "synchronize"

// Reconciler resolves pull requests and hands them to the engine. Runs for
// the same pull request are serialized.
type Reconciler struct {
	repos  githubforge.ClientSource
	engine *reconciler.Engine
	clock  clockwork.Clock

	mu    sync.Mutex
	locks map[string]*prLock
}

type prLock struct {
	sync.Mutex
	refs int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock sets the clock used to compute rate limit retry delays.
func WithClock(c clockwork.Clock) Option {
	return func(r *Reconciler) { r.clock = c }
}

// NewReconciler creates a Reconciler that reads pull requests with clients
// from repos and drives forge.
func NewReconciler(cfg reconciler.Config, repos githubforge.ClientSource, forge reconciler.Forge, opts ...Option) *Reconciler {
	r := &Reconciler{
		repos:  repos,
		engine: reconciler.NewEngine(cfg, forge),
		clock:  clockwork.NewRealClock(),
		locks:  make(map[string]*prLock),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile processes the pull request at url, as if action had been
// delivered for it.
func (r *Reconciler) Reconcile(ctx context.Context, url, action string) (reconciler.Result, error) {
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("key", url))

	res, err := ParseURL(url)
	if err != nil {
		return reconciler.Result{}, fmt.Errorf("parsing URL: %w", err)
	}
	gh, err := r.repos.Get(ctx, res.Owner, res.Repo)
	if err != nil {
		return reconciler.Result{}, fmt.Errorf("getting GitHub client: %w", err)
	}

	pr, err := githubforge.FetchPullRequest(ctx, gh, res.Owner, res.Repo, res.Number)
	if err != nil {
		return reconciler.Result{Outcome: reconciler.OutcomeInfrastructureFailed}, classifyRateLimit(err, r.clock.Now())
	}
	if action == "" {
		action = DefaultAction
	}
	pr.Action = action
	return r.run(ctx, pr)
}

// ReconcileEvent processes a pull_request webhook payload.
func (r *Reconciler) ReconcileEvent(ctx context.Context, ev *github.PullRequestEvent) (reconciler.Result, error) {
	pr, err := githubforge.FromEvent(ev)
	if err != nil {
		return reconciler.Result{Outcome: reconciler.OutcomeInfrastructureFailed}, err
	}
	return r.run(ctx, pr)
}

func (r *Reconciler) run(ctx context.Context, pr reconciler.PullRequest) (reconciler.Result, error) {
	key := fmt.Sprintf("%s/%s#%d", pr.BaseOwner, pr.BaseRepo, pr.Number)
	unlock := r.lock(key)
	defer unlock()

	res, err := r.engine.Reconcile(ctx, pr)
	if err != nil {
		err = classifyRateLimit(err, r.clock.Now())
		if delay, ok := GetRetryDelay(err); ok {
			clog.FromContext(ctx).With("retry_after", delay).
				Warn("Rate limited, retry after the limit resets")
		}
		return res, err
	}

	clog.FromContext(ctx).With("mode", res.Mode.String(), "outcome", res.Outcome.String(), "changed", res.Changed).
		Infof("Reconciled %s", key)
	return res, nil
}

func (r *Reconciler) lock(key string) func() {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &prLock{}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		r.mu.Lock()
		defer r.mu.Unlock()
		if l.refs--; l.refs == 0 {
			delete(r.locks, key)
		}
	}
}
