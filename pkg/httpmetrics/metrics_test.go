/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package httpmetrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerCountsByEvent(t *testing.T) {
	h := Handler("test-webhook", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	labels := prometheus.Labels{
		"handler":       "test-webhook",
		"method":        http.MethodPost,
		"code":          "202",
		"service_name":  env.KnativeServiceName,
		"revision_name": env.KnativeRevisionName,
		"event":         "pull_request",
	}
	before := testutil.ToFloat64(counter.With(labels))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(GitHubEventHeader, "pull_request")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter.With(labels)))
}

func TestWrapTransportRecordsRateLimits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Resource", "core")
		w.Header().Set("X-RateLimit-Remaining", "4321")
		w.Header().Set("X-RateLimit-Limit", "5000")
		io.WriteString(w, "{}")
	}))
	defer srv.Close()

	// Route requests for api.github.com to the test server.
	base := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		r = r.Clone(r.Context())
		r.URL.Scheme = "http"
		r.URL.Host = srv.Listener.Addr().String()
		return http.DefaultTransport.RoundTrip(r)
	})

	client := &http.Client{Transport: WrapTransport(base)}
	resp, err := client.Get("https://api.github.com/repos/o/r/pulls/1")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, float64(4321), testutil.ToFloat64(mGitHubRateLimitRemaining.WithLabelValues("core")))
	assert.Equal(t, float64(5000), testutil.ToFloat64(mGitHubRateLimit.WithLabelValues("core")))
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
