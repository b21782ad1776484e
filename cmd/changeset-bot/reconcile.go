/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chainguard-dev/changeset-bot/pkg/githubforge"
	"github.com/chainguard-dev/changeset-bot/pkg/githubreconciler"
	"github.com/chainguard-dev/changeset-bot/pkg/reconciler"
)

func actionCmd() *cobra.Command {
	var eventPath string
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Reconcile the pull request of a GitHub Actions pull_request event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := loadEnv(ctx)
			if err != nil {
				return err
			}
			if eventPath == "" {
				return errors.New("GITHUB_EVENT_PATH is not set")
			}

			ev, err := githubforge.ReadEventFile(eventPath)
			if err != nil {
				return err
			}
			rec, err := newReconciler(ctx, env)
			if err != nil {
				return err
			}
			res, err := rec.ReconcileEvent(ctx, ev)
			return report(cmd.OutOrStdout(), res, err)
		},
	}
	cmd.Flags().StringVar(&eventPath, "event-path", os.Getenv("GITHUB_EVENT_PATH"), "path to the pull_request event payload")
	return cmd
}

func reconcileCmd() *cobra.Command {
	var action string
	cmd := &cobra.Command{
		Use:   "reconcile <pr-url>",
		Short: "Reconcile one pull request by URL or owner/repo#number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := loadEnv(ctx)
			if err != nil {
				return err
			}
			rec, err := newReconciler(ctx, env)
			if err != nil {
				return err
			}
			res, err := rec.Reconcile(ctx, args[0], action)
			return report(cmd.OutOrStdout(), res, err)
		},
	}
	cmd.Flags().StringVar(&action, "action", githubreconciler.DefaultAction, "pull request action to reconcile as")
	return cmd
}

// report prints the result. Validation failures become an error so that the
// check fails.
func report(w io.Writer, res reconciler.Result, err error) error {
	if err != nil {
		if delay, ok := githubreconciler.GetRetryDelay(err); ok {
			return fmt.Errorf("retry in %v: %w", delay, err)
		}
		return err
	}

	fmt.Fprintf(w, "mode: %s\noutcome: %s\nchanged: %t\n", res.Mode, res.Outcome, res.Changed)
	if res.Err != nil {
		fmt.Fprintf(w, "\n%s\n", res.Err.Error())
	}
	if res.Outcome == reconciler.OutcomeValidationFailed {
		return errors.New("changelog check failed")
	}
	return nil
}
