/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/chainguard-dev/changeset-bot/internal/config"
	"github.com/chainguard-dev/changeset-bot/pkg/githubforge"
	"github.com/chainguard-dev/changeset-bot/pkg/githubreconciler"
)

type envConfig struct {
	Port        int `env:"PORT, default=8080"`
	MetricsPort int `env:"METRICS_PORT, default=2112"`

	// Exactly one of these authenticates calls against the base repository.
	GitHubToken     string `env:"GITHUB_TOKEN"`
	OctoSTSIdentity string `env:"OCTO_STS_IDENTITY"`

	// The GitHub App is optional. Without it every pull request is handled
	// in manual mode. The key is a file://, env:// or gcpkms:// URL.
	AppID  int64  `env:"GITHUB_APP_ID"`
	AppKey string `env:"GITHUB_APP_KEY"`

	// Note: any environment variable starting with "WEBHOOK_SECRET" will be loaded as a webhook secret to be checked.
	OrgFilter []string      `env:"ORG_FILTER"`
	WebhookID []string      `env:"WEBHOOK_ID"`
	Timeout   time.Duration `env:"RECONCILE_TIMEOUT, default=2m"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		clog.WarnContextf(ctx, "failed to load .env: %v", err)
	}

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "changeset-bot",
		Short:         "Keeps changelog fragments in sync with pull request descriptions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		actionCmd(),
		serveCmd(),
		serveEventsCmd(),
		reconcileCmd(),
		lintCmd(),
	)
	return root
}

func loadEnv(ctx context.Context) (envConfig, error) {
	var env envConfig
	if err := envconfig.Process(ctx, &env); err != nil {
		return envConfig{}, err
	}
	return env, nil
}

// newReconciler wires the engine to GitHub using the credentials in env.
func newReconciler(ctx context.Context, env envConfig) (*githubreconciler.Reconciler, error) {
	cfg, err := config.Load(ctx, nil)
	if err != nil {
		return nil, err
	}

	var repos *githubreconciler.ClientCache
	switch {
	case env.OctoSTSIdentity != "":
		clog.InfoContextf(ctx, "using Octo STS identity %q", env.OctoSTSIdentity)
		repos = githubreconciler.NewClientCache(githubreconciler.OctoSTS(env.OctoSTSIdentity))
	case env.GitHubToken != "":
		repos = githubreconciler.NewOrgScopedClientCache(githubreconciler.StaticToken(env.GitHubToken))
	default:
		return nil, errors.New("one of GITHUB_TOKEN or OCTO_STS_IDENTITY must be set")
	}

	opts := []githubforge.Option{githubforge.WithName(cfg.AppName)}
	if env.AppID != 0 {
		if env.AppKey == "" {
			return nil, errors.New("GITHUB_APP_KEY must be set with GITHUB_APP_ID")
		}
		app, err := githubforge.NewApp(ctx, env.AppID, env.AppKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, githubforge.WithApp(app))
	} else {
		clog.WarnContextf(ctx, "GITHUB_APP_ID is not set, pull requests will be reconciled in manual mode")
	}

	return githubreconciler.NewReconciler(cfg, repos, githubforge.New(repos, opts...)), nil
}
