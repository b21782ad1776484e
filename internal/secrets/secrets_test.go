/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package secrets

import (
	"testing"

	"github.com/chainguard-dev/clog/slogtest"
	"github.com/google/go-cmp/cmp"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET_2", "bar")
	t.Setenv("WEBHOOK_SECRET", "foo")
	t.Setenv("WEBHOOK_SECRET_OLD", "")
	t.Setenv("NOT_A_WEBHOOK_SECRET", "baz")

	got := LoadFromEnv(slogtest.Context(t))

	want := [][]byte{[]byte("foo"), []byte("bar")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadFromEnv() mismatch (-want +got):\n%s", diff)
	}
}
