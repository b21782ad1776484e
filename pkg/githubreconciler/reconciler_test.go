/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubreconciler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v75/github"

	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
	"github.com/chainguard-dev/changeset-bot/pkg/githubforge"
	"github.com/chainguard-dev/changeset-bot/pkg/reconciler"
	"github.com/chainguard-dev/changeset-bot/pkg/reconciler/reconcilertest"
)

func testPR(body string) *github.PullRequest {
	return &github.PullRequest{
		Number:  github.Ptr(7),
		Body:    github.Ptr(body),
		HTMLURL: github.Ptr("https://github.com/acme/widgets/pull/7"),
		Base: &github.PullRequestBranch{
			Ref:  github.Ptr("main"),
			Repo: &github.Repository{Name: github.Ptr("widgets"), Owner: &github.User{Login: github.Ptr("acme")}},
		},
		Head: &github.PullRequestBranch{
			Ref:  github.Ptr("topic"),
			Repo: &github.Repository{Name: github.Ptr("widgets"), Owner: &github.User{Login: github.Ptr("alice")}},
		},
	}
}

func prServer(t *testing.T, handler http.HandlerFunc) githubforge.ClientSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gh := github.NewClient(srv.Client())
	gh.BaseURL, _ = url.Parse(srv.URL + "/")
	return githubforge.Static{Client: gh}
}

func TestReconcileByURL(t *testing.T) {
	repos := prServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/pulls/7" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(testPR("## Changelog\n- feat: add widgets"))
	})
	forge := reconcilertest.New()
	forge.Installed["alice/widgets"] = true

	r := NewReconciler(reconciler.DefaultConfig(), repos, forge)
	res, err := r.Reconcile(context.Background(), "https://github.com/acme/widgets/pull/7", "")
	if err != nil {
		t.Fatalf("Reconcile() = %v", err)
	}
	if res.Outcome != reconciler.OutcomeArtifactWritten || !res.Changed {
		t.Errorf("Reconcile() = %+v, wanted a written artifact", res)
	}

	key := reconcilertest.FileKey("alice", "widgets", "topic", "changelogs/fragments/7.yml")
	want := "feat:\n- Add widgets ([#7](https://github.com/acme/widgets/pull/7))"
	if got := forge.Files[key]; got != want {
		t.Errorf("fragment = %q, wanted %q", got, want)
	}
}

func TestReconcileByURLFetchFailure(t *testing.T) {
	repos := prServer(t, http.NotFound)
	r := NewReconciler(reconciler.DefaultConfig(), repos, reconcilertest.New())

	res, err := r.Reconcile(context.Background(), "https://github.com/acme/widgets/pull/7", "")
	if !changelog.IsKind(err, changelog.PullRequestDataExtractionError) {
		t.Errorf("Reconcile() error = %v, wanted PullRequestDataExtractionError", err)
	}
	if res.Outcome != reconciler.OutcomeInfrastructureFailed {
		t.Errorf("Outcome = %v, wanted %v", res.Outcome, reconciler.OutcomeInfrastructureFailed)
	}
}

func TestReconcileBadURL(t *testing.T) {
	r := NewReconciler(reconciler.DefaultConfig(), githubforge.Static{}, reconcilertest.New())
	if _, err := r.Reconcile(context.Background(), "https://github.com/acme/widgets/issues/7", ""); err == nil {
		t.Error("Reconcile() of an issue URL = nil error")
	}
}

func TestReconcileEventManualReminder(t *testing.T) {
	forge := reconcilertest.New()
	r := NewReconciler(reconciler.DefaultConfig(), githubforge.Static{}, forge)

	res, err := r.ReconcileEvent(context.Background(), &github.PullRequestEvent{
		Action:      github.Ptr("opened"),
		PullRequest: testPR("## Changelog\n- fix: crash"),
	})
	if err != nil {
		t.Fatalf("ReconcileEvent() = %v", err)
	}
	if res.Mode != reconciler.Manual || res.Outcome != reconciler.OutcomeWaitingForManualArtifact {
		t.Errorf("ReconcileEvent() = %+v, wanted a manual reminder", res)
	}
	if forge.Comments[7] == "" {
		t.Error("no reminder comment was posted")
	}
}

// blockingForge parks every installation lookup until released, and records
// the highest number of concurrent runs.
type blockingForge struct {
	*reconcilertest.Forge
	release  chan struct{}
	inflight int32
	peak     int32
}

func (b *blockingForge) Installation(ctx context.Context, owner, repo string) (reconciler.Installation, error) {
	n := atomic.AddInt32(&b.inflight, 1)
	defer atomic.AddInt32(&b.inflight, -1)
	for {
		p := atomic.LoadInt32(&b.peak)
		if n <= p || atomic.CompareAndSwapInt32(&b.peak, p, n) {
			break
		}
	}
	<-b.release
	return b.Forge.Installation(ctx, owner, repo)
}

func TestReconcileEventSerializesSamePR(t *testing.T) {
	forge := &blockingForge{Forge: reconcilertest.New(), release: make(chan struct{})}
	r := NewReconciler(reconciler.DefaultConfig(), githubforge.Static{}, forge)

	ev := &github.PullRequestEvent{Action: github.Ptr("edited"), PullRequest: testPR("## Changelog\n- skip")}

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.ReconcileEvent(context.Background(), ev); err != nil {
				t.Errorf("ReconcileEvent() = %v", err)
			}
		}()
	}
	for range 3 {
		select {
		case forge.release <- struct{}{}:
		case <-time.After(5 * time.Second):
			t.Fatal("reconciliation never reached the forge")
		}
	}
	wg.Wait()

	if got := atomic.LoadInt32(&forge.peak); got != 1 {
		t.Errorf("peak concurrent runs for one pull request = %d, wanted 1", got)
	}
	if len(r.locks) != 0 {
		t.Errorf("locks leaked: %v", r.locks)
	}
}

func TestReconcileEventRateLimited(t *testing.T) {
	forge := reconcilertest.New()
	forge.Installed["alice/widgets"] = true
	reset := time.Now().Add(30 * time.Minute)
	forge.Errors[reconcilertest.OpRead] = &github.RateLimitError{
		Rate:    github.Rate{Reset: github.Timestamp{Time: reset}},
		Message: "API rate limit exceeded",
	}

	r := NewReconciler(reconciler.DefaultConfig(), githubforge.Static{}, forge)
	_, err := r.ReconcileEvent(context.Background(), &github.PullRequestEvent{
		Action:      github.Ptr("edited"),
		PullRequest: testPR("## Changelog\n- feat: thing"),
	})

	delay, ok := GetRetryDelay(err)
	if !ok {
		t.Fatalf("GetRetryDelay(%v) = false, wanted a retry", err)
	}
	if delay < 29*time.Minute || delay > 30*time.Minute {
		t.Errorf("delay = %v, wanted about 30m", delay)
	}
	var rle *github.RateLimitError
	if !errors.As(err, &rle) {
		t.Errorf("rate limit cause lost: %v", err)
	}
}
