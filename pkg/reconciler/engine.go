/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package reconciler drives a pull request's changelog state to match its
// description: the changeset fragment on the head branch, the skip and
// failed labels, and the bot's advisory comment.
//
// Every run starts from scratch. All mutations are check-then-act, so
// running the engine again on an unchanged pull request changes nothing.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
	"github.com/chainguard-dev/changeset-bot/pkg/changeset"
)

// Engine reconciles pull requests against a Forge.
type Engine struct {
	cfg    Config
	forge  Forge
	parser *changelog.Parser
}

// NewEngine returns an engine for the given configuration.
func NewEngine(cfg Config, forge Forge) *Engine {
	return &Engine{
		cfg:    cfg,
		forge:  forge,
		parser: cfg.parser(),
	}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Reconcile runs one pass over a pull request. Validation failures are
// reported on the pull request and returned in Result.Err with a nil error;
// the error return is reserved for infrastructure failures.
func (e *Engine) Reconcile(ctx context.Context, pr PullRequest) (res Result, err error) {
	ctx, span := otel.Tracer("changeset-bot").Start(ctx, "Reconcile", trace.WithAttributes(
		attribute.String("repo", pr.BaseOwner+"/"+pr.BaseRepo),
		attribute.Int("pr", pr.Number),
		attribute.String("action", pr.Action),
	))
	defer func() {
		span.SetAttributes(
			attribute.String("mode", res.Mode.String()),
			attribute.String("outcome", res.Outcome.String()),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		mReconciles.WithLabelValues(res.Mode.String(), res.Outcome.String()).Inc()
	}()

	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With(
		"owner", pr.BaseOwner,
		"repo", pr.BaseRepo,
		"pr", pr.Number,
		"action", pr.Action,
	))

	mode, inst, err := e.selectMode(ctx, pr)
	if err != nil {
		return e.fail(ctx, pr, Manual, err)
	}
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("mode", mode.String(), "installation", inst.String()))
	clog.FromContext(ctx).Infof("Reconciling changelog in %s mode", mode)

	entries, err := e.parse(pr.Description, mode)
	if err != nil {
		return e.fail(ctx, pr, mode, err)
	}

	skip, err := changelog.SkipRequested(entries)
	if err != nil {
		return e.fail(ctx, pr, mode, err)
	}
	if skip {
		return e.skip(ctx, pr, mode)
	}
	if mode == Automatic {
		return e.sync(ctx, pr, entries)
	}
	return e.manual(ctx, pr, inst)
}

func (e *Engine) selectMode(ctx context.Context, pr PullRequest) (Mode, Installation, error) {
	inst, err := e.forge.Installation(ctx, pr.HeadOwner, pr.HeadRepo)
	if err != nil {
		return Manual, NotInstalled, changelog.Infrastructure(changelog.InstallationLookupError, err)
	}
	if inst == Installed {
		return Automatic, inst, nil
	}
	return Manual, inst, nil
}

// parse runs the changelog pipeline. Manual mode treats a missing or empty
// section as nothing declared yet.
func (e *Engine) parse(description string, mode Mode) ([]changelog.Entry, error) {
	entries, err := e.parser.Parse(description)
	if err != nil && mode == Manual &&
		(changelog.IsKind(err, changelog.EmptyChangelogSection) || changelog.IsKind(err, changelog.InvalidHeading)) {
		return nil, nil
	}
	return entries, err
}

func (e *Engine) skip(ctx context.Context, pr PullRequest, mode Mode) (Result, error) {
	path := e.cfg.ArtifactPath(pr.Number)

	exists, err := e.artifactExists(ctx, pr, path)
	if err != nil {
		return e.fail(ctx, pr, mode, err)
	}

	action, err := DecideSkip(e.cfg, mode, pr.Number, exists)
	if err != nil {
		return e.fail(ctx, pr, mode, err)
	}

	res := Result{Mode: mode, Outcome: OutcomeSkipped}
	if action == DeleteArtifact {
		deleted, err := e.deleteArtifact(ctx, pr, path)
		if err != nil {
			return e.fail(ctx, pr, mode, err)
		}
		res.Changed = deleted
	}

	if err := e.setLabels(ctx, pr, true, false); err != nil {
		res.Outcome = OutcomeInfrastructureFailed
		return res, err
	}
	clog.FromContext(ctx).Info("Changelog skipped")
	return res, nil
}

func (e *Engine) sync(ctx context.Context, pr PullRequest, entries []changelog.Entry) (Result, error) {
	log := clog.FromContext(ctx)
	path := e.cfg.ArtifactPath(pr.Number)

	m, err := changeset.Build(entries, pr.Number, pr.Link)
	if err != nil {
		return e.fail(ctx, pr, Automatic, err)
	}
	content := m.Render()

	current, err := e.forge.ReadArtifact(ctx, pr.HeadOwner, pr.HeadRepo, pr.HeadBranch, path)
	exists := err == nil
	if err != nil && !errors.Is(err, ErrArtifactNotFound) {
		return e.fail(ctx, pr, Automatic, changelog.Infrastructure(changelog.ArtifactAccessError, err))
	}

	res := Result{Mode: Automatic, Outcome: OutcomeArtifactWritten}
	if exists && current == content {
		log.Infof("Fragment %s is up to date, nothing to do", path)
	} else {
		msg := fmt.Sprintf("Changeset file for PR #%d created/updated", pr.Number)
		if err := e.forge.WriteArtifact(ctx, pr.HeadOwner, pr.HeadRepo, pr.HeadBranch, path, content, msg); err != nil {
			return e.fail(ctx, pr, Automatic, changelog.Infrastructure(changelog.ArtifactWriteError, err))
		}
		mArtifactChanges.WithLabelValues("write").Inc()
		log.Infof("Wrote fragment %s", path)
		res.Changed = true
	}

	if err := e.setLabels(ctx, pr, false, false); err != nil {
		res.Outcome = OutcomeInfrastructureFailed
		return res, err
	}
	return res, nil
}

func (e *Engine) manual(ctx context.Context, pr PullRequest, inst Installation) (Result, error) {
	switch pr.Action {
	case "opened", "reopened":
		res := Result{Mode: Manual, Outcome: OutcomeWaitingForManualArtifact}
		var errs []error
		if err := e.forge.PostComment(ctx, pr.BaseOwner, pr.BaseRepo, pr.Number, e.reminderComment(pr.Number, inst)); err != nil {
			errs = append(errs, changelog.Infrastructure(changelog.ForgeError, err))
		}
		if err := e.setLabels(ctx, pr, false, true); err != nil {
			errs = append(errs, err)
		}
		if err := errors.Join(errs...); err != nil {
			res.Outcome = OutcomeInfrastructureFailed
			return res, err
		}
		clog.FromContext(ctx).Info("Reminded author to commit the fragment")
		return res, nil

	default:
		path := e.cfg.ArtifactPath(pr.Number)
		present, err := e.forge.ArtifactInCommittedChanges(ctx, pr.BaseOwner, pr.BaseRepo, pr.Number, path)
		if err != nil {
			return e.fail(ctx, pr, Manual, changelog.Infrastructure(changelog.ArtifactAccessError, err))
		}
		if !present {
			return e.fail(ctx, pr, Manual, changelog.ErrArtifactNotAddedYet(changeset.FileName(pr.Number), e.cfg.ArtifactDir))
		}

		res := Result{Mode: Manual, Outcome: OutcomeArtifactPresent}
		if err := e.setLabels(ctx, pr, false, false); err != nil {
			res.Outcome = OutcomeInfrastructureFailed
			return res, err
		}
		return res, nil
	}
}

// fail is the compensating path. Content errors remove any fragment written
// by an earlier run (automatic mode), and both classes of error are
// reported with a comment and the failed label.
func (e *Engine) fail(ctx context.Context, pr PullRequest, mode Mode, cause error) (Result, error) {
	log := clog.FromContext(ctx)
	res := Result{Mode: mode}

	var errs []error
	ce, content := changelog.AsContentError(cause)
	if content {
		res.Outcome = OutcomeValidationFailed
		res.Err = ce
		log.Infof("Changelog validation failed: %v", ce)

		if mode == Automatic {
			if _, err := e.deleteArtifact(ctx, pr, e.cfg.ArtifactPath(pr.Number)); err != nil {
				errs = append(errs, err)
			}
		}
	} else {
		res.Outcome = OutcomeInfrastructureFailed
		errs = append(errs, cause)
		log.Errorf("Reconciliation failed: %v", cause)
	}

	if err := e.forge.PostComment(ctx, pr.BaseOwner, pr.BaseRepo, pr.Number, failureComment(cause)); err != nil {
		log.Warnf("Failed to post failure comment: %v", err)
		errs = append(errs, changelog.Infrastructure(changelog.ForgeError, err))
	}
	if err := e.setLabels(ctx, pr, false, true); err != nil {
		log.Warnf("Failed to set failure labels: %v", err)
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		res.Outcome = OutcomeInfrastructureFailed
	}
	return res, err
}

func (e *Engine) artifactExists(ctx context.Context, pr PullRequest, path string) (bool, error) {
	_, err := e.forge.ReadArtifact(ctx, pr.HeadOwner, pr.HeadRepo, pr.HeadBranch, path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrArtifactNotFound):
		return false, nil
	default:
		return false, changelog.Infrastructure(changelog.ArtifactAccessError, err)
	}
}

func (e *Engine) deleteArtifact(ctx context.Context, pr PullRequest, path string) (bool, error) {
	msg := fmt.Sprintf("Changeset file for PR #%d deleted", pr.Number)
	deleted, err := e.forge.DeleteArtifact(ctx, pr.HeadOwner, pr.HeadRepo, pr.HeadBranch, path, msg)
	if err != nil {
		return false, changelog.Infrastructure(changelog.ArtifactDeleteError, err)
	}
	if deleted {
		mArtifactChanges.WithLabelValues("delete").Inc()
		clog.FromContext(ctx).Infof("Deleted fragment %s", path)
	}
	return deleted, nil
}

// setLabels moves the pull request towards the (skip, failed) label pair.
func (e *Engine) setLabels(ctx context.Context, pr PullRequest, skip, failed bool) error {
	var errs []error
	for _, l := range []struct {
		name    string
		present bool
	}{{e.cfg.SkipLabel, skip}, {e.cfg.FailedLabel, failed}} {
		if err := e.forge.SetLabel(ctx, pr.BaseOwner, pr.BaseRepo, pr.Number, l.name, l.present); err != nil {
			errs = append(errs, fmt.Errorf("setting label %q to %v: %w", l.name, l.present, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return changelog.Infrastructure(changelog.ForgeError, err)
	}
	return nil
}

func failureComment(err error) string {
	title, msg := "Changeset Error", err.Error()
	if ce, ok := changelog.AsContentError(err); ok {
		title, msg = ce.Kind.Title(), ce.Message
	} else if ie, ok := changelog.AsInfrastructureError(err); ok {
		title, msg = ie.Kind.Title(), ie.Message()
	}
	return fmt.Sprintf("### ❌ %s\n\n%s\n", title, msg)
}

func (e *Engine) reminderComment(number int, inst Installation) string {
	var b strings.Builder
	b.WriteString("### ⚠️ Manual Changeset Creation Reminder\n\n")
	if inst == Suspended {
		fmt.Fprintf(&b, "%s is suspended in your forked repository. ", e.appLink())
	}
	fmt.Fprintf(&b, "Please ensure **manual commit for changeset file _%s_** under folder _%s_ to complete this PR.",
		changeset.FileName(number), e.cfg.ArtifactDir)
	switch {
	case inst == Suspended:
		b.WriteString("\n\nUnsuspend the app in your fork's settings to let it create the changeset file for you.")
	case e.cfg.AppInstallURL != "":
		fmt.Fprintf(&b, "\n\nIf you want to use the available %s to avoid manual creation of changeset file "+
			"you can install it in your forked repository following this [link](%s).", e.cfg.AppName, e.cfg.AppInstallURL)
	}
	if e.cfg.DocsURL != "" {
		fmt.Fprintf(&b, "\n\nFor more information about formatting of changeset files, please visit [%s](%s).",
			e.cfg.DocsName, e.cfg.DocsURL)
	}
	b.WriteString("\n")
	return b.String()
}

func (e *Engine) appLink() string {
	if e.cfg.AppInstallURL == "" {
		return e.cfg.AppName
	}
	return fmt.Sprintf("[%s](%s)", e.cfg.AppName, e.cfg.AppInstallURL)
}
