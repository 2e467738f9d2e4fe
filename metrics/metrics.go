// Package metrics holds the Prometheus collectors for the matching service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Engine
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_actions_total",
			Help: "Actions submitted to the ledger, by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: recorded, mutual, duplicate, invalid, not_found, inconsistent, unavailable, error
	)

	MutualMatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_mutual_matches_total",
			Help: "Mutual matches formed",
		},
	)

	UnmatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_unmatches_total",
			Help: "Mutual matches cleared by unmatch",
		},
	)

	StorageRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_storage_retries_total",
			Help: "Storage operations retried after a transient failure",
		},
		[]string{"operation"},
	)

	NotifyFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_notify_failures_total",
			Help: "Mutual-match events the notifier failed to accept",
		},
	)

	InconsistentStatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_inconsistent_states_total",
			Help: "Pairs found with one record mutual and the other not",
		},
	)

	CompatibilityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_compatibility_score",
			Help:    "Distribution of computed compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matching_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Notifier
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "matching_websocket_clients",
			Help: "Connected websocket clients",
		},
	)
)
