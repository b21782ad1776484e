/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mReconciles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeset_reconcile_outcomes_total",
			Help: "The number of reconciliations by automation mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	mArtifactChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changeset_artifact_changes_total",
			Help: "The number of fragment writes and deletes performed.",
		},
		[]string{"operation"},
	)
)
