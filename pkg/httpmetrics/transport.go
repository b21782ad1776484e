/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package httpmetrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const githubAPIHost = "api.github.com"

var (
	mReqCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_client_request_count",
			Help: "The total number of outgoing HTTP requests",
		},
		[]string{"code", "method", "host", "path", "service_name", "revision_name"},
	)
	mReqDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_client_request_duration_seconds",
			Help:    "The duration of outgoing HTTP requests",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"code", "method", "host", "path", "service_name", "revision_name"},
	)
	mGitHubRateLimitRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "github_rate_limit_remaining",
			Help: "The number of requests remaining in the current rate limit window",
		},
		[]string{"resource"},
	)
	mGitHubRateLimit = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "github_rate_limit",
			Help: "The number of requests allowed during the rate limit window",
		},
		[]string{"resource"},
	)
)

// WrapTransport instruments t with request metrics, GitHub rate limit
// gauges and client spans.
func WrapTransport(t http.RoundTripper) http.RoundTripper {
	if t == nil {
		t = http.DefaultTransport
	}
	return instrumentRoundTripper(instrumentGitHubRateLimits(otelhttp.NewTransport(t)))
}

func instrumentRoundTripper(next http.RoundTripper) promhttp.RoundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		host := r.URL.Host
		path := ""
		if host == githubAPIHost {
			path = bucketizePath(r.URL.Path)
		} else {
			host = "other"
		}

		start := time.Now()
		resp, err := next.RoundTrip(r)

		code := "error"
		if err == nil {
			code = strconv.Itoa(resp.StatusCode)
		}
		labels := prometheus.Labels{
			"code":          code,
			"method":        r.Method,
			"host":          host,
			"path":          path,
			"service_name":  env.KnativeServiceName,
			"revision_name": env.KnativeRevisionName,
		}
		mReqCount.With(labels).Inc()
		mReqDuration.With(labels).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// instrumentGitHubRateLimits records the primary rate limit headers.
// https://docs.github.com/en/rest/using-the-rest-api/rate-limits-for-the-rest-api
func instrumentGitHubRateLimits(next http.RoundTripper) promhttp.RoundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		resp, err := next.RoundTrip(r)
		if err != nil || !strings.HasSuffix(r.URL.Host, githubAPIHost) {
			return resp, err
		}

		resource := resp.Header.Get("X-RateLimit-Resource")
		if resource == "" {
			resource = "unknown"
		}
		if v, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining")); err == nil {
			mGitHubRateLimitRemaining.WithLabelValues(resource).Set(float64(v))
		}
		if v, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit")); err == nil {
			mGitHubRateLimit.WithLabelValues(resource).Set(float64(v))
		}
		return resp, nil
	}
}
