/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubforge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
)

// App authenticates as a GitHub App, so the bot can write to contributors'
// forks where the app is installed.
type App struct {
	atr     *ghinstallation.AppsTransport
	gh      *github.Client
	baseURL string

	mu      sync.Mutex
	clients map[int64]*github.Client
}

// AppOption configures an App.
type AppOption func(*App)

// WithBaseURL points the app at a GitHub Enterprise (or test) API endpoint.
func WithBaseURL(u string) AppOption {
	return func(a *App) { a.baseURL = strings.TrimSuffix(u, "/") }
}

// NewApp returns an App for appID whose JWTs are signed with the key at
// keyURL (see NewSigner).
func NewApp(ctx context.Context, appID int64, keyURL string, opts ...AppOption) (*App, error) {
	signer, err := NewSigner(ctx, keyURL)
	if err != nil {
		return nil, err
	}
	atr, err := ghinstallation.NewAppsTransportWithOptions(Transport(nil), appID, ghinstallation.WithSigner(signer))
	if err != nil {
		return nil, fmt.Errorf("creating apps transport: %w", err)
	}
	return newApp(atr, opts...)
}

func newApp(atr *ghinstallation.AppsTransport, opts ...AppOption) (*App, error) {
	a := &App{
		atr:     atr,
		baseURL: strings.TrimSuffix(atr.BaseURL, "/"),
		clients: make(map[int64]*github.Client),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.atr.BaseURL = a.baseURL

	gh, err := a.newClient(&http.Client{Transport: a.atr})
	if err != nil {
		return nil, err
	}
	a.gh = gh
	return a, nil
}

func (a *App) newClient(hc *http.Client) (*github.Client, error) {
	gh := github.NewClient(hc)
	if a.baseURL != "" && a.baseURL != "https://api.github.com" {
		u, err := url.Parse(a.baseURL + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
		gh.BaseURL = u
	}
	return gh, nil
}

// Installation returns the app's installation on owner/repo.
func (a *App) Installation(ctx context.Context, owner, repo string) (*github.Installation, error) {
	inst, _, err := a.gh.Apps.FindRepositoryInstallation(ctx, owner, repo)
	return inst, err
}

// Get implements ClientSource with a client authenticated as the app's
// installation on owner/repo.
func (a *App) Get(ctx context.Context, owner, repo string) (*github.Client, error) {
	inst, err := a.Installation(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("finding installation on %s/%s: %w", owner, repo, err)
	}
	return a.Client(ctx, inst.GetID())
}

// Client returns the shared client of an installation.
func (a *App) Client(ctx context.Context, id int64) (*github.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gh, ok := a.clients[id]; ok {
		return gh, nil
	}

	itr := ghinstallation.NewFromAppsTransport(a.atr, id)
	itr.BaseURL = a.baseURL
	gh, err := a.newClient(&http.Client{Transport: itr})
	if err != nil {
		return nil, err
	}
	a.clients[id] = gh

	clog.FromContext(ctx).With("installation", id).Info("Created installation client")
	return gh, nil
}
