/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubreconciler

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"

	"github.com/chainguard-dev/changeset-bot/pkg/githubforge"
)

// TokenSourceFunc creates an OAuth2 token source for a given org/repo.
type TokenSourceFunc func(ctx context.Context, org, repo string) (oauth2.TokenSource, error)

// ClientCache hands out one GitHub client per org/repo. It implements
// githubforge.ClientSource.
type ClientCache struct {
	tokenSourceFunc TokenSourceFunc
	orgScoped       bool

	mu      sync.RWMutex
	clients map[string]*github.Client
}

var _ githubforge.ClientSource = (*ClientCache)(nil)

// NewClientCache creates a client cache backed by tokenSourceFunc.
func NewClientCache(tokenSourceFunc TokenSourceFunc) *ClientCache {
	return &ClientCache{
		tokenSourceFunc: tokenSourceFunc,
		clients:         make(map[string]*github.Client),
	}
}

// NewOrgScopedClientCache shares a client between all repositories of an
// org; the token source is asked for an empty repo.
func NewOrgScopedClientCache(tokenSourceFunc TokenSourceFunc) *ClientCache {
	cc := NewClientCache(tokenSourceFunc)
	cc.orgScoped = true
	return cc
}

// Get returns a GitHub client for the given org/repo, creating one if needed.
func (cc *ClientCache) Get(ctx context.Context, org, repo string) (*github.Client, error) {
	if cc.orgScoped {
		repo = ""
	}
	key := fmt.Sprintf("%s/%s", org, repo)

	cc.mu.RLock()
	client, ok := cc.clients[key]
	cc.mu.RUnlock()
	if ok {
		return client, nil
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	if client, ok := cc.clients[key]; ok {
		return client, nil
	}

	// The token source outlives this request, so it must not inherit its
	// cancellation.
	ts, err := cc.tokenSourceFunc(context.Background(), org, repo)
	if err != nil {
		return nil, fmt.Errorf("creating token source: %w", err)
	}

	client = github.NewClient(&http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   githubforge.Transport(nil),
		},
	})
	cc.clients[key] = client

	clog.FromContext(ctx).With("org", org, "repo", repo).Info("Created new GitHub client")
	return client, nil
}

// Clear removes all cached clients.
func (cc *ClientCache) Clear() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.clients = make(map[string]*github.Client)
}
