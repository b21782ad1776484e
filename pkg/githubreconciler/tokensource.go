/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubreconciler

import (
	"context"
	"time"

	"chainguard.dev/sdk/octosts"
	"github.com/chainguard-dev/clog"
	"golang.org/x/oauth2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// octoTokenFunc is swapped out in tests.
var octoTokenFunc = octosts.Token

// tokenSource implements oauth2.TokenSource using Octo STS.
type tokenSource struct {
	ctx      context.Context
	identity string
	org      string
	repo     string
}

// Token implements oauth2.TokenSource
func (ts *tokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ts.ctx, 1*time.Minute)
	defer cancel()
	tok, err := octoTokenFunc(ctx, ts.identity, ts.org, ts.repo)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// Usually a missing trust policy, or the org's installation
			// quota is exhausted. Neither clears up quickly.
			scope := ts.org
			if ts.repo != "" {
				scope = ts.org + "/" + ts.repo
			}
			clog.ErrorContextf(ctx, "Got NotFound error from Octo STS for %q: %v", scope, err)
			return nil, RetryAfter(10*time.Minute, err)
		}
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: tok,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(55 * time.Minute), // Octo STS tokens live for 60 minutes
	}, nil
}

// OctoSTS returns a TokenSourceFunc exchanging the ambient identity for
// GitHub tokens with the given Octo STS identity (trust policy name).
func OctoSTS(identity string) TokenSourceFunc {
	return func(ctx context.Context, org, repo string) (oauth2.TokenSource, error) {
		return oauth2.ReuseTokenSource(nil, &tokenSource{
			ctx:      ctx,
			identity: identity,
			org:      org,
			repo:     repo,
		}), nil
	}
}

// StaticToken returns a TokenSourceFunc that uses the same personal access
// or Actions token for every repository.
func StaticToken(token string) TokenSourceFunc {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return func(context.Context, string, string) (oauth2.TokenSource, error) {
		return ts, nil
	}
}
