// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Package metrics defines the Prometheus collectors shared across
// components. All collectors are registered on the default registry and
// exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by route, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelswipe_http_requests_total",
		Help: "Total HTTP requests processed",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration observes request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reelswipe_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// TMDBRequestsTotal counts outbound metadata-provider calls.
	TMDBRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelswipe_tmdb_requests_total",
		Help: "Outbound TMDB calls by endpoint and result",
	}, []string{"endpoint", "result"})

	// TMDBRetriesTotal counts backoff retries against the provider.
	TMDBRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelswipe_tmdb_retries_total",
		Help: "Retries performed against TMDB",
	})

	// CircuitBreakerState tracks breaker state (0 closed, 1 half-open, 2 open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reelswipe_circuit_breaker_state",
		Help: "Circuit breaker state: 0=closed 1=half-open 2=open",
	}, []string{"name"})

	// CircuitBreakerTransitions counts breaker state changes.
	CircuitBreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelswipe_circuit_breaker_transitions_total",
		Help: "Circuit breaker state transitions",
	}, []string{"name", "from", "to"})

	// PoolBuildsTotal counts pool builds by outcome
	// (success, insufficient_content, error).
	PoolBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelswipe_pool_builds_total",
		Help: "Catalog pool builds by outcome",
	}, []string{"outcome"})

	// PoolItemsAccepted counts quality-gate acceptances by priority tier.
	PoolItemsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelswipe_pool_items_accepted_total",
		Help: "Candidates accepted by the quality gate, by priority tier",
	}, []string{"priority"})

	// PoolItemsRejected counts quality-gate rejections by reason.
	PoolItemsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelswipe_pool_items_rejected_total",
		Help: "Candidates rejected by the quality gate, by reason",
	}, []string{"reason"})

	// VotesProcessedTotal counts consensus pipeline events by decision.
	VotesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelswipe_votes_processed_total",
		Help: "Vote change-feed events processed by decision",
	}, []string{"decision"})

	// MatchesTotal counts MATCHED transitions won.
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelswipe_matches_total",
		Help: "Rooms transitioned to MATCHED",
	})

	// NotificationsPublishedTotal counts match notifications published.
	NotificationsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelswipe_notifications_published_total",
		Help: "Match notifications published to the sink",
	})

	// RoomsExpiredTotal counts rooms swept to EXPIRED.
	RoomsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelswipe_rooms_expired_total",
		Help: "Rooms expired by the TTL sweeper",
	})

	// CatalogWindowHits tracks batch-window cache effectiveness.
	CatalogWindowHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelswipe_catalog_window_requests_total",
		Help: "Catalog batch-window lookups by result (hit, miss)",
	}, []string{"result"})
)
