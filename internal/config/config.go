/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package config assembles the bot's settings from defaults, an optional
// YAML file and the environment, in increasing order of precedence.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
	"github.com/chainguard-dev/changeset-bot/pkg/reconciler"
)

// Settings are the user-facing knobs. Zero values leave the lower layer in
// place.
type Settings struct {
	Heading        string   `yaml:"heading" env:"CHANGELOG_HEADING"`
	Prefixes       []string `yaml:"prefixes" env:"CHANGELOG_PREFIXES"`
	MaxEntryLength int      `yaml:"max_entry_length" env:"CHANGELOG_MAX_ENTRY_LENGTH"`
	ArtifactDir    string   `yaml:"artifact_dir" env:"CHANGESET_DIR"`
	SkipLabel      string   `yaml:"skip_label" env:"SKIP_LABEL"`
	FailedLabel    string   `yaml:"failed_label" env:"FAILED_LABEL"`
	AppName        string   `yaml:"app_name" env:"APP_NAME"`
	AppInstallURL  string   `yaml:"app_install_url" env:"APP_INSTALL_URL"`
	DocsName       string   `yaml:"docs_name" env:"DOCS_NAME"`
	DocsURL        string   `yaml:"docs_url" env:"DOCS_URL"`
}

type env struct {
	ConfigFile string `env:"CONFIG_FILE"`
	Settings   Settings
}

var prefixRE = regexp.MustCompile(`^[a-z0-9]+$`)

// Load builds the engine configuration. A nil lookuper reads the process
// environment.
func Load(ctx context.Context, l envconfig.Lookuper) (reconciler.Config, error) {
	if l == nil {
		l = envconfig.OsLookuper()
	}
	var e env
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &e, Lookuper: l}); err != nil {
		return reconciler.Config{}, fmt.Errorf("processing environment: %w", err)
	}

	cfg := reconciler.DefaultConfig()
	if e.ConfigFile != "" {
		f, err := os.Open(e.ConfigFile)
		if err != nil {
			return reconciler.Config{}, fmt.Errorf("opening config file: %w", err)
		}
		defer f.Close()

		file, err := Parse(f)
		if err != nil {
			return reconciler.Config{}, fmt.Errorf("%s: %w", e.ConfigFile, err)
		}
		clog.InfoContextf(ctx, "loaded settings from %s", e.ConfigFile)
		if cfg, err = file.Apply(cfg); err != nil {
			return reconciler.Config{}, fmt.Errorf("%s: %w", e.ConfigFile, err)
		}
	}

	cfg, err := e.Settings.Apply(cfg)
	if err != nil {
		return reconciler.Config{}, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return reconciler.Config{}, err
	}
	return cfg, nil
}

// Parse reads YAML settings, rejecting unknown keys.
func Parse(r io.Reader) (Settings, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Settings{}, err
	}
	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("parsing settings: %w", err)
	}
	return s, nil
}

// Apply overlays the non-zero settings onto cfg.
func (s Settings) Apply(cfg reconciler.Config) (reconciler.Config, error) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Heading, s.Heading)
	set(&cfg.ArtifactDir, s.ArtifactDir)
	set(&cfg.SkipLabel, s.SkipLabel)
	set(&cfg.FailedLabel, s.FailedLabel)
	set(&cfg.AppName, s.AppName)
	set(&cfg.AppInstallURL, s.AppInstallURL)
	set(&cfg.DocsName, s.DocsName)
	set(&cfg.DocsURL, s.DocsURL)
	if s.MaxEntryLength != 0 {
		cfg.MaxEntryLength = s.MaxEntryLength
	}

	if len(s.Prefixes) > 0 {
		t, err := taxonomy(s.Prefixes)
		if err != nil {
			return cfg, err
		}
		cfg.Taxonomy = t
	}
	return cfg, nil
}

func taxonomy(names []string) (changelog.Taxonomy, error) {
	seen := map[changelog.Prefix]bool{}
	prefixes := make([]changelog.Prefix, 0, len(names))
	for _, n := range names {
		p := changelog.Prefix(strings.ToLower(strings.TrimSpace(n)))
		switch {
		case !prefixRE.MatchString(string(p)):
			return changelog.Taxonomy{}, fmt.Errorf("prefix %q must be alphanumeric", n)
		case p == changelog.Skip:
			return changelog.Taxonomy{}, fmt.Errorf("prefix %q is reserved", n)
		case seen[p]:
			return changelog.Taxonomy{}, fmt.Errorf("prefix %q is listed twice", n)
		}
		seen[p] = true
		prefixes = append(prefixes, p)
	}
	return changelog.NewTaxonomy(prefixes...), nil
}
