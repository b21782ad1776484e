/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package webhook receives GitHub pull_request deliveries and reconciles them.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
	"github.com/chainguard-dev/changeset-bot/pkg/githubreconciler"
	"github.com/chainguard-dev/changeset-bot/pkg/reconciler"
)

// Actions are the pull_request actions that can change the changelog state.
var Actions = []string{"opened", "reopened", "edited", "synchronize"}

var (
	mDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeset_webhook_deliveries_total",
			Help: "The number of webhook deliveries by event, action and result",
		},
		[]string{"event", "action", "result"},
	)
	mLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "changeset_webhook_reconcile_seconds",
			Help:    "The time taken to reconcile a pull request delivery",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)
)

// Reconciler handles a validated pull_request event.
type Reconciler interface {
	ReconcileEvent(ctx context.Context, ev *github.PullRequestEvent) (reconciler.Result, error)
}

// Server is an http.Handler for GitHub webhook deliveries.
type Server struct {
	rec       Reconciler
	secrets   [][]byte
	clock     clockwork.Clock
	timeout   time.Duration
	orgFilter []string
	webhookID []string
}

// ServerOptions configures a Server.
type ServerOptions struct {
	// Secrets are tried in turn when validating a delivery's signature.
	Secrets [][]byte
	// OrgFilter, when set, drops deliveries for repositories of other orgs.
	OrgFilter []string
	// WebhookID, when set, drops deliveries from other webhooks.
	WebhookID []string
	// Timeout bounds a reconciliation. It is detached from the delivery's
	// request, which GitHub abandons after ten seconds.
	Timeout time.Duration
}

// NewServer returns a Server that hands deliveries to rec.
func NewServer(rec Reconciler, opts ServerOptions) *Server {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Server{
		rec:       rec,
		secrets:   opts.Secrets,
		clock:     clockwork.NewRealClock(),
		timeout:   timeout,
		orgFilter: opts.OrgFilter,
		webhookID: opts.WebhookID,
	}
}

type response struct {
	Mode    string `json:"mode,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Changed bool   `json:"changed,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := clog.FromContext(ctx)

	// https://docs.github.com/en/webhooks/using-webhooks/validating-webhook-deliveries
	payload, err := ValidatePayload(r, s.secrets)
	if err != nil {
		log.Errorf("failed to verify webhook: %v", err)
		mDeliveries.WithLabelValues("", "", "forbidden").Inc()
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprintf(w, "failed to verify webhook: %v", err)
		return
	}

	// https://docs.github.com/en/webhooks/webhook-events-and-payloads#delivery-headers
	t := github.WebHookType(r)
	if t == "" {
		log.Errorf("missing X-GitHub-Event header")
		mDeliveries.WithLabelValues("", "", "bad_request").Inc()
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	log = log.With("event-type", t, "delivery", github.DeliveryID(r))

	if len(s.webhookID) > 0 && !slices.Contains(s.webhookID, r.Header.Get("X-GitHub-Hook-ID")) {
		log.Warnf("ignoring event from webhook %q", r.Header.Get("X-GitHub-Hook-ID"))
		s.ack(w, t, "", "ignored", "webhook not handled here")
		return
	}

	switch t {
	case "ping":
		s.ack(w, t, "", "pong", "pong")
		return
	case "pull_request":
	default:
		log.Debugf("ignoring event type %s", t)
		s.ack(w, t, "", "ignored", "event type not handled")
		return
	}

	ev, err := github.ParseWebHook(t, payload)
	if err != nil {
		log.Errorf("failed to parse payload: %v", err)
		mDeliveries.WithLabelValues(t, "", "bad_request").Inc()
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	pre, ok := ev.(*github.PullRequestEvent)
	if !ok {
		log.Errorf("unexpected payload type %T", ev)
		mDeliveries.WithLabelValues(t, "", "bad_request").Inc()
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	action := pre.GetAction()
	log = log.With("action", action, "repo", pre.GetRepo().GetFullName())
	if !slices.Contains(Actions, action) {
		s.ack(w, t, action, "ignored", "action not handled")
		return
	}
	if len(s.orgFilter) > 0 && !slices.Contains(s.orgFilter, pre.GetRepo().GetOwner().GetLogin()) {
		log.Warnf("ignoring event from repository %q due to non-matching org", pre.GetRepo().GetFullName())
		s.ack(w, t, action, "ignored", "org not handled")
		return
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(clog.WithLogger(ctx, log)), s.timeout)
	defer cancel()

	start := s.clock.Now()
	res, err := s.rec.ReconcileEvent(rctx, pre)
	mLatency.WithLabelValues(res.Outcome.String()).Observe(s.clock.Since(start).Seconds())

	if err != nil {
		if delay, ok := githubreconciler.GetRetryDelay(err); ok {
			log.Warnf("reconciliation must be retried in %v: %v", delay, err)
			mDeliveries.WithLabelValues(t, action, "retry").Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if changelog.IsKind(err, changelog.PullRequestDataExtractionError) {
			log.Errorf("dropping delivery: %v", err)
			mDeliveries.WithLabelValues(t, action, "dropped").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(response{Message: err.Error()})
			return
		}
		log.Errorf("reconciliation failed: %v", err)
		mDeliveries.WithLabelValues(t, action, "error").Inc()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	mDeliveries.WithLabelValues(t, action, res.Outcome.String()).Inc()
	resp := response{Mode: res.Mode.String(), Outcome: res.Outcome.String(), Changed: res.Changed}
	if res.Err != nil {
		resp.Message = res.Err.Message
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ack answers a delivery that needs no reconciliation. 202 tells GitHub the
// delivery was received but nothing was done.
func (s *Server) ack(w http.ResponseWriter, event, action, result, msg string) {
	mDeliveries.WithLabelValues(event, action, result).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(response{Message: msg})
}

// ValidatePayload validates the payload of a webhook request for a given set of secrets.
// If any of the secrets are valid, the payload is returned with no error.
func ValidatePayload(r *http.Request, secrets [][]byte) ([]byte, error) {
	signature := r.Header.Get(github.SHA256SignatureHeader)
	if signature == "" {
		signature = r.Header.Get(github.SHA1SignatureHeader)
	}
	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	// The body is read once and replayed for each secret.
	for _, secret := range secrets {
		payload, err := github.ValidatePayloadFromBody(contentType, bytes.NewReader(body), signature, secret)
		if err == nil {
			return payload, nil
		}
	}
	return nil, fmt.Errorf("failed to validate payload")
}
