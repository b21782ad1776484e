/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/go-github/v75/github"

	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
	"github.com/chainguard-dev/changeset-bot/pkg/githubreconciler"
	"github.com/chainguard-dev/changeset-bot/pkg/reconciler"
)

type fakeReconciler struct {
	events []*github.PullRequestEvent
	err    error
}

func (f *fakeReconciler) ReconcileEvent(_ context.Context, ev *github.PullRequestEvent) (reconciler.Result, error) {
	f.events = append(f.events, ev)
	if f.err != nil {
		return reconciler.Result{Outcome: reconciler.OutcomeInfrastructureFailed}, f.err
	}
	return reconciler.Result{Outcome: reconciler.OutcomeSkipped}, nil
}

func newEvent(t *testing.T, typ, action string) cloudevents.Event {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"action":       action,
		"pull_request": map[string]any{"number": 11},
	})
	if err != nil {
		t.Fatal(err)
	}

	ev := cloudevents.NewEvent()
	ev.SetID("5678")
	ev.SetType(typ)
	ev.SetSource("github.com")
	ev.SetSubject("acme/widgets")
	if err := ev.SetData(cloudevents.ApplicationJSON, Envelope{
		When:    time.Now(),
		Headers: &Headers{DeliveryID: "5678", Event: "pull_request"},
		Body:    body,
	}); err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name      string
		event     cloudevents.Event
		err       error
		wantCalls int
		wantNACK  bool
		wantRetry bool
	}{{
		name:      "edited",
		event:     newEvent(t, PullRequestType, "edited"),
		wantCalls: 1,
	}, {
		name:  "closed is ignored",
		event: newEvent(t, PullRequestType, "closed"),
	}, {
		name:  "other type is ignored",
		event: newEvent(t, "dev.chainguard.github.push", "edited"),
	}, {
		name:      "transient failure is retried",
		event:     newEvent(t, PullRequestType, "opened"),
		err:       githubreconciler.RetryAfter(time.Minute, errors.New("rate limited")),
		wantCalls: 1,
		wantNACK:  true,
		wantRetry: true,
	}, {
		name:      "infrastructure failure is redelivered",
		event:     newEvent(t, PullRequestType, "opened"),
		err:       changelog.Infrastructure(changelog.ArtifactWriteError, errors.New("boom")),
		wantCalls: 1,
		wantNACK:  true,
	}, {
		name:      "bad payload is dropped",
		event:     newEvent(t, PullRequestType, "synchronize"),
		err:       changelog.Infrastructure(changelog.PullRequestDataExtractionError, errors.New("no repo")),
		wantCalls: 1,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeReconciler{err: tt.err}
			err := Handler(rec)(context.Background(), tt.event)

			if got := len(rec.events); got != tt.wantCalls {
				t.Errorf("reconciliations = %d, wanted %d", got, tt.wantCalls)
			}
			if (err != nil) != tt.wantNACK {
				t.Errorf("Handler() = %v, wanted NACK %v", err, tt.wantNACK)
			}
			if tt.wantRetry && !cloudevents.IsNACK(err) {
				t.Errorf("Handler() = %v, wanted an HTTP NACK result", err)
			}
			if tt.wantCalls > 0 && rec.events[0].GetPullRequest().GetNumber() != 11 {
				t.Errorf("pull request number = %d, wanted 11", rec.events[0].GetPullRequest().GetNumber())
			}
		})
	}
}

func TestHandlerDropsUndecodableData(t *testing.T) {
	ev := cloudevents.NewEvent()
	ev.SetID("1")
	ev.SetType(PullRequestType)
	ev.SetSource("github.com")
	if err := ev.SetData(cloudevents.ApplicationJSON, map[string]any{"body": "not an object"}); err != nil {
		t.Fatal(err)
	}

	rec := &fakeReconciler{}
	if err := Handler(rec)(context.Background(), ev); err != nil {
		t.Errorf("Handler() = %v, wanted the event to be dropped", err)
	}
	if len(rec.events) != 0 {
		t.Errorf("reconciliations = %d, wanted 0", len(rec.events))
	}
}
