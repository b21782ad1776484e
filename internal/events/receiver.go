/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package events reconciles pull requests delivered as CloudEvents, in the
// envelope produced by a GitHub webhook trampoline.
package events

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/chainguard-dev/clog"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"github.com/google/go-github/v75/github"

	"github.com/chainguard-dev/changeset-bot/internal/webhook"
	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
	"github.com/chainguard-dev/changeset-bot/pkg/githubreconciler"
	"github.com/chainguard-dev/changeset-bot/pkg/httpmetrics"
)

// PullRequestType is the CloudEvent type of pull_request deliveries.
const PullRequestType = "dev.chainguard.github.pull_request"

// Envelope is the data of a forwarded webhook delivery.
type Envelope struct {
	When    time.Time       `json:"when"`
	Headers *Headers        `json:"headers,omitempty"`
	Body    json.RawMessage `json:"body"`
}

// Headers are the delivery headers recorded alongside the payload.
// See https://docs.github.com/en/webhooks/webhook-events-and-payloads#delivery-headers
type Headers struct {
	HookID     string `json:"hook_id,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Event      string `json:"event,omitempty"`
}

// NewClient returns a CloudEvents HTTP client listening on port, with the
// standard HTTP metrics around its handler.
func NewClient(port int, opts ...cehttp.Option) (cloudevents.Client, error) {
	return cloudevents.NewClientHTTP(append([]cehttp.Option{
		cloudevents.WithPort(port),
		cloudevents.WithMiddleware(func(next http.Handler) http.Handler {
			return httpmetrics.Handler("cloudevents", next)
		}),
	}, opts...)...)
}

// Handler returns the receiver function for rec. Returning an error NACKs
// the event so the broker redelivers it, which is only useful for transient
// failures.
func Handler(rec webhook.Reconciler) func(context.Context, cloudevents.Event) error {
	return func(ctx context.Context, event cloudevents.Event) error {
		log := clog.FromContext(ctx).With("type", event.Type(), "id", event.ID(), "subject", event.Subject())

		if event.Type() != PullRequestType {
			log.Debug("ignoring event")
			return nil
		}

		var env Envelope
		if err := event.DataAs(&env); err != nil {
			log.Errorf("failed to unmarshal event: %v", err)
			return nil
		}
		var pre github.PullRequestEvent
		if err := json.Unmarshal(env.Body, &pre); err != nil {
			log.Errorf("failed to unmarshal pull request event: %v", err)
			return nil
		}

		action := pre.GetAction()
		if !slices.Contains(webhook.Actions, action) {
			log.With("action", action).Debug("ignoring action")
			return nil
		}

		res, err := rec.ReconcileEvent(clog.WithLogger(ctx, log), &pre)
		switch {
		case err == nil:
			log.With("outcome", res.Outcome.String()).Info("reconciled pull request")
			return nil
		case changelog.IsKind(err, changelog.PullRequestDataExtractionError):
			// Redelivering a malformed payload cannot help.
			log.Errorf("dropping event: %v", err)
			return nil
		}
		if delay, ok := githubreconciler.GetRetryDelay(err); ok {
			log.Warnf("reconciliation must be retried in %v: %v", delay, err)
			return cloudevents.NewHTTPResult(http.StatusServiceUnavailable, "retry after %v: %v", delay, err)
		}
		log.Errorf("reconciliation failed: %v", err)
		return err
	}
}
