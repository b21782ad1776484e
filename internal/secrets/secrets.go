/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package secrets loads webhook signing secrets from the environment.
package secrets

import (
	"context"
	"os"
	"slices"
	"strings"

	"github.com/chainguard-dev/clog"
)

// Prefix marks the environment variables that hold webhook secrets. Several
// may be set at once so that a secret can be rotated without downtime.
const Prefix = "WEBHOOK_SECRET"

// LoadFromEnv returns the non-empty values of all variables starting with
// Prefix, ordered by variable name.
func LoadFromEnv(ctx context.Context) [][]byte {
	var keys []string
	values := map[string]string{}
	for _, e := range os.Environ() {
		k, v, ok := strings.Cut(e, "=")
		if !ok || !strings.HasPrefix(k, Prefix) {
			continue
		}
		if v == "" {
			clog.WarnContextf(ctx, "skipping empty secret: %q", k)
			continue
		}
		keys = append(keys, k)
		values[k] = v
	}
	slices.Sort(keys)

	secrets := make([][]byte, 0, len(keys))
	for _, k := range keys {
		clog.InfoContextf(ctx, "loading secret: %q", k)
		secrets = append(secrets, []byte(values[k]))
	}
	return secrets
}
