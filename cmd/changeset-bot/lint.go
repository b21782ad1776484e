/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chainguard-dev/changeset-bot/internal/config"
	"github.com/chainguard-dev/changeset-bot/pkg/changelog"
	"github.com/chainguard-dev/changeset-bot/pkg/changeset"
	"github.com/chainguard-dev/changeset-bot/pkg/reconciler"
)

type lintOptions struct {
	artifact bool
	number   int
	link     string
}

func lintCmd() *cobra.Command {
	var opts lintOptions
	cmd := &cobra.Command{
		Use:   "lint [file]",
		Short: "Validate a pull request description, or a fragment with --artifact",
		Long: `Validate a pull request description and print the fragment it produces.
With --artifact the file is checked as a committed fragment instead.
The file defaults to standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Context(), nil)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			text, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			return lint(cmd.OutOrStdout(), cfg, string(text), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.artifact, "artifact", false, "validate a fragment file instead of a description")
	cmd.Flags().IntVar(&opts.number, "number", 0, "pull request number used in rendered lines")
	cmd.Flags().StringVar(&opts.link, "link", "", "pull request link used in rendered lines")
	return cmd
}

func lint(w io.Writer, cfg reconciler.Config, text string, opts lintOptions) error {
	if opts.artifact {
		m, err := changeset.Parse(text, cfg.Taxonomy)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "fragment is valid: %d categories\n", m.Len())
		return nil
	}

	p := changelog.NewParser(
		changelog.WithHeading(cfg.Heading),
		changelog.WithTaxonomy(cfg.Taxonomy),
		changelog.WithMaxEntryLength(cfg.MaxEntryLength),
	)
	entries, err := p.Parse(text)
	if err != nil {
		return err
	}
	m, err := changeset.Build(entries, opts.number, opts.link)
	if err != nil {
		return err
	}
	if m.Skip() {
		fmt.Fprintln(w, "changelog skipped")
		return nil
	}
	fmt.Fprintln(w, m.Render())
	return nil
}
