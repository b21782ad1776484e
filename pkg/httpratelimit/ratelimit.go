/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package httpratelimit throttles GitHub API traffic. Requests share a
// steady token bucket, and a rate-limited response pauses every request on
// the transport until GitHub says it is safe to continue.
package httpratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// GitHub rate limit headers, in Go canonical form.
// https://docs.github.com/en/rest/using-the-rest-api/rate-limits-for-the-rest-api
const (
	HeaderRetryAfter          = "Retry-After"
	HeaderXRateLimitReset     = "X-Ratelimit-Reset"
	HeaderXRateLimitRemaining = "X-Ratelimit-Remaining"
)

// Transport is an http.RoundTripper that waits out GitHub rate limits.
type Transport struct {
	base              http.RoundTripper
	clock             clockwork.Clock
	limiter           *rate.Limiter
	defaultRetryAfter time.Duration
	maxRetries        int

	mu         sync.Mutex
	pauseUntil time.Time
}

// Option configures a Transport.
type Option func(*Transport)

// WithClock replaces the wall clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(t *Transport) { t.clock = c }
}

// WithRate bounds the steady request rate.
func WithRate(r rate.Limit, burst int) Option {
	return func(t *Transport) { t.limiter = rate.NewLimiter(r, burst) }
}

// WithDefaultRetryAfter sets the pause used when a rate-limited response
// carries no usable headers.
func WithDefaultRetryAfter(d time.Duration) Option {
	return func(t *Transport) { t.defaultRetryAfter = d }
}

// WithMaxRetries bounds how often one request is retried after a pause.
func WithMaxRetries(n int) Option {
	return func(t *Transport) { t.maxRetries = n }
}

// NewTransport wraps base, which defaults to http.DefaultTransport.
func NewTransport(base http.RoundTripper, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{
		base:              base,
		clock:             clockwork.NewRealClock(),
		limiter:           rate.NewLimiter(rate.Inf, 100),
		defaultRetryAfter: time.Minute,
		maxRetries:        3,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	for attempt := 0; ; attempt++ {
		if err := t.wait(ctx); err != nil {
			return nil, err
		}
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return resp, err
		}

		pause, limited := t.pauseFor(ctx, resp)
		if !limited {
			return resp, nil
		}
		t.pause(pause)

		// Requests whose body cannot be replayed are handed back as-is; the
		// pause still protects the requests that follow.
		if attempt >= t.maxRetries || (req.Body != nil && req.Body != http.NoBody && req.GetBody == nil) {
			return resp, nil
		}
		next, err := rewind(req)
		if err != nil {
			return resp, nil
		}
		resp.Body.Close()
		req = next
	}
}

func rewind(req *http.Request) (*http.Request, error) {
	if req.GetBody == nil {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	next := req.Clone(req.Context())
	next.Body = body
	return next, nil
}

// pauseFor reports whether resp is rate limited and for how long to back off.
func (t *Transport) pauseFor(ctx context.Context, resp *http.Response) (time.Duration, bool) {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return 0, false
	}
	log := clog.FromContext(ctx)

	if v := resp.Header.Get(HeaderRetryAfter); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			log.With("retry_after", v).Warn("GitHub secondary rate limit hit, pausing requests")
			return time.Duration(seconds) * time.Second, true
		}
		log.Warnf("Ignoring retry-after header %q", v)
	}

	remaining := resp.Header.Get(HeaderXRateLimitRemaining)
	if remaining != "0" {
		// A 403 with quota left is a permission problem, not a rate limit.
		if resp.StatusCode == http.StatusForbidden {
			return 0, false
		}
	} else if v := resp.Header.Get(HeaderXRateLimitReset); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(epoch, 0).Sub(t.clock.Now()); d > 0 {
				log.With("reset_at", time.Unix(epoch, 0)).Warn("GitHub rate limit exhausted, pausing until reset")
				return d, true
			}
		}
	}

	log.With("retry_after", t.defaultRetryAfter).Warn("GitHub rate limit hit without usable headers, using default pause")
	return t.defaultRetryAfter, true
}

// pause blocks every request until d from now, unless a longer pause is
// already in effect.
func (t *Transport) pause(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if until := t.clock.Now().Add(d); until.After(t.pauseUntil) {
		t.pauseUntil = until
	}
}

func (t *Transport) wait(ctx context.Context) error {
	t.mu.Lock()
	d := t.pauseUntil.Sub(t.clock.Now())
	t.mu.Unlock()
	if d <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.clock.After(d):
		return nil
	}
}
