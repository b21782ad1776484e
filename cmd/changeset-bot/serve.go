/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chainguard-dev/changeset-bot/internal/events"
	"github.com/chainguard-dev/changeset-bot/internal/secrets"
	"github.com/chainguard-dev/changeset-bot/internal/webhook"
	"github.com/chainguard-dev/changeset-bot/pkg/httpmetrics"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve GitHub webhook deliveries on /webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := loadEnv(ctx)
			if err != nil {
				return err
			}
			defer httpmetrics.SetupTracer(ctx)()

			rec, err := newReconciler(ctx, env)
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			mux.Handle("/webhook", httpmetrics.Handler("webhook", webhook.NewServer(rec, webhook.ServerOptions{
				Secrets:   secrets.LoadFromEnv(ctx),
				OrgFilter: env.OrgFilter,
				WebhookID: env.WebhookID,
				Timeout:   env.Timeout,
			})))
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", env.Port),
				ReadHeaderTimeout: 10 * time.Second,
				Handler:           mux,
			}

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return httpmetrics.ServeMetrics(ctx, env.MetricsPort)
			})
			eg.Go(func() error {
				clog.InfoContextf(ctx, "listening on %s", srv.Addr)
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			eg.Go(func() error {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				return srv.Shutdown(sctx)
			})
			return eg.Wait()
		},
	}
}

func serveEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-events",
		Short: "Receive pull_request CloudEvents from a broker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := loadEnv(ctx)
			if err != nil {
				return err
			}
			defer httpmetrics.SetupTracer(ctx)()

			rec, err := newReconciler(ctx, env)
			if err != nil {
				return err
			}
			c, err := events.NewClient(env.Port)
			if err != nil {
				return fmt.Errorf("creating cloudevents client: %w", err)
			}

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return httpmetrics.ServeMetrics(ctx, env.MetricsPort)
			})
			eg.Go(func() error {
				return c.StartReceiver(ctx, events.Handler(rec))
			})
			return eg.Wait()
		},
	}
}
