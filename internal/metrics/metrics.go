// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

// Package metrics defines the Prometheus collectors exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP surface.

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Elicitation loop.

	FeedbackSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_submissions_total",
			Help: "Feedback submissions by resulting controller state",
		},
		[]string{"state"}, // "eliciting", "done"
	)

	SessionsFinalizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_finalized_total",
			Help: "Sessions marked final by the terminal feedback action",
		},
	)

	// Session store.

	SessionStoreReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_store_reads_total",
			Help: "Session document reads by result",
		},
		[]string{"result"}, // "hit", "miss", "corrupt", "unreadable"
	)

	SessionStoreWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_store_writes_total",
			Help: "Session documents persisted",
		},
	)

	SessionHeadGroupSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_head_group_size",
			Help:    "Number of sessions cached per head group",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)

	// Graph neighbor service.

	GraphLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_lookups_total",
			Help: "Graph service lookups by operation and status",
		},
		[]string{"operation", "status"}, // status: "ok", "error", "rejected"
	)

	GraphLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graph_lookup_duration_seconds",
			Help:    "Graph service lookup duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	GraphRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_retries_total",
			Help: "Transient-error retries of graph lookups",
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Candidate sampling.

	SamplerDrawsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sampler_draws_total",
			Help: "Stratified sampler invocations",
		},
	)

	SamplerShortfallTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sampler_shortfall_total",
			Help: "Stratified draws that returned fewer picks than requested",
		},
	)

	// Caches.

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits",
		},
		[]string{"cache_type"}, // "counts", "final_batch"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses",
		},
		[]string{"cache_type"},
	)
)
