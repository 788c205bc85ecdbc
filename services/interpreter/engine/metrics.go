// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the interpreter core. Registered on the default
// registry and exposed by the API server's /metrics endpoint.
var (
	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kodiak",
		Subsystem: "interpreter",
		Name:      "sessions_total",
		Help:      "Sessions completed, by terminal status.",
	}, []string{"status"})

	attemptsPerSession = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kodiak",
		Subsystem: "interpreter",
		Name:      "attempts_per_session",
		Help:      "Number of attempts a session needed before sealing.",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})

	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kodiak",
		Subsystem: "interpreter",
		Name:      "executions_total",
		Help:      "Script executions, by outcome (success, failure, timeout).",
	}, []string{"outcome"})

	executionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kodiak",
		Subsystem: "interpreter",
		Name:      "execution_duration_seconds",
		Help:      "Wall-clock duration of script executions.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	installsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kodiak",
		Subsystem: "interpreter",
		Name:      "package_installs_total",
		Help:      "Package manager invocations, by outcome.",
	}, []string{"outcome"})
)
