/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubreconciler

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/go-github/v75/github"
)

type retryError struct {
	delay time.Duration
	err   error
}

func (e *retryError) Error() string {
	return fmt.Sprintf("retry after %v: %v", e.delay, e.err)
}

func (e *retryError) Unwrap() error { return e.err }

// RetryAfter marks err as transient: the same pull request should be
// reconciled again once delay has passed.
func RetryAfter(delay time.Duration, err error) error {
	return &retryError{delay: delay, err: err}
}

// GetRetryDelay extracts the delay from an error produced by RetryAfter.
func GetRetryDelay(err error) (time.Duration, bool) {
	var re *retryError
	if errors.As(err, &re) {
		return re.delay, true
	}
	return 0, false
}

// classifyRateLimit turns GitHub rate limit errors into retry errors.
func classifyRateLimit(err error, now time.Time) error {
	if _, ok := GetRetryDelay(err); ok {
		return err
	}

	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return RetryAfter(rateLimitErr.Rate.Reset.Sub(now), err)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		// Secondary limits without a hint get a conservative minute.
		delay := time.Minute
		if abuseErr.RetryAfter != nil {
			delay = *abuseErr.RetryAfter
		}
		return RetryAfter(delay, err)
	}
	return err
}
