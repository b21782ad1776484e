/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
	"github.com/chainguard-dev/changeset-bot/pkg/githubreconciler"
	"github.com/chainguard-dev/changeset-bot/pkg/reconciler"
)

const prLink = "https://github.com/acme/widgets/pull/7"

func TestLint(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		opts    lintOptions
		want    string
		wantErr changelog.Kind
	}{{
		name: "description",
		text: "Some context.\n\n## Changelog\n- feat: add x\n- fix: bug y\n- feat: add z\n",
		opts: lintOptions{number: 7, link: prLink},
		want: "feat:\n- Add x ([#7](" + prLink + "))\n- Add z ([#7](" + prLink + "))\n\nfix:\n- Bug y ([#7](" + prLink + "))\n",
	}, {
		name: "skip",
		text: "## Changelog\n- skip\n",
		want: "changelog skipped\n",
	}, {
		name:    "missing heading",
		text:    "- feat: add x\n",
		wantErr: changelog.InvalidHeading,
	}, {
		name:    "unknown prefix",
		text:    "## Changelog\n- feature: add x\n",
		wantErr: changelog.InvalidPrefix,
	}, {
		name: "fragment",
		text: "feat:\n- Add x ([#7](" + prLink + "))\n",
		opts: lintOptions{artifact: true},
		want: "fragment is valid: 1 categories\n",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := lint(&out, reconciler.DefaultConfig(), tt.text, tt.opts)
			if tt.wantErr != 0 {
				var ce *changelog.ContentError
				if !errors.As(err, &ce) || ce.Kind != tt.wantErr {
					t.Fatalf("lint() error = %v, wanted kind %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("lint() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, out.String()); diff != "" {
				t.Errorf("lint() output (-want, +got): %s", diff)
			}
		})
	}
}

func TestLintRejectsBadFragment(t *testing.T) {
	err := lint(&bytes.Buffer{}, reconciler.DefaultConfig(), "feature:\n- Add x\n", lintOptions{artifact: true})
	if err == nil {
		t.Error("lint() = nil, wanted an error for an unknown prefix")
	}
}

func TestReport(t *testing.T) {
	tests := []struct {
		name    string
		res     reconciler.Result
		err     error
		want    string
		wantErr string
	}{{
		name: "written",
		res:  reconciler.Result{Mode: reconciler.Automatic, Outcome: reconciler.OutcomeArtifactWritten, Changed: true},
		want: "mode: automatic\noutcome: artifact_written\nchanged: true\n",
	}, {
		name: "waiting",
		res:  reconciler.Result{Mode: reconciler.Manual, Outcome: reconciler.OutcomeWaitingForManualArtifact},
		want: "mode: manual\noutcome: waiting_for_manual_artifact\nchanged: false\n",
	}, {
		name: "validation failure",
		res: reconciler.Result{
			Mode:    reconciler.Automatic,
			Outcome: reconciler.OutcomeValidationFailed,
			Err:     &changelog.ContentError{Kind: changelog.InvalidHeading, Message: "no heading"},
		},
		want:    "mode: automatic\noutcome: validation_failed\nchanged: false\n\nno heading\n",
		wantErr: "changelog check failed",
	}, {
		name:    "retry",
		err:     githubreconciler.RetryAfter(time.Minute, errors.New("rate limited")),
		wantErr: "retry in 1m0s",
	}, {
		name:    "infrastructure",
		err:     changelog.Infrastructure(changelog.ArtifactWriteError, errors.New("boom")),
		wantErr: "boom",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := report(&out, tt.res, tt.err)
			switch {
			case tt.wantErr == "" && err != nil:
				t.Errorf("report() error = %v", err)
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Errorf("report() error = %v, wanted %q", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, out.String()); diff != "" {
				t.Errorf("report() output (-want, +got): %s", diff)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	var got []string
	for _, c := range rootCmd().Commands() {
		got = append(got, c.Name())
	}
	want := []string{"action", "lint", "reconcile", "serve", "serve-events"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("commands (-want, +got): %s", diff)
	}
}
