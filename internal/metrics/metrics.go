// Package metrics holds the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InteractionsRecorded counts accepted interaction events by type.
	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openlot_core",
			Name:      "interactions_recorded_total",
			Help:      "Interaction events accepted by the aggregator.",
		},
		[]string{"type"},
	)

	// RecommendationRequests counts ranking queries by path.
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openlot_core",
			Name:      "recommendation_requests_total",
			Help:      "Recommendation queries served, by ranking path.",
		},
		[]string{"path"},
	)

	// ChatTurns counts completed send-message turns by outcome.
	ChatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openlot_core",
			Name:      "chat_turns_total",
			Help:      "Chat turns completed, by outcome (ok, degraded, rejected).",
		},
		[]string{"outcome"},
	)

	// ExternalCallFailures counts embedding and completion failures.
	ExternalCallFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openlot_core",
			Name:      "external_call_failures_total",
			Help:      "Failed calls to external providers.",
		},
		[]string{"provider"},
	)

	// ChatTurnDuration observes end-to-end turn latency.
	ChatTurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "openlot_core",
			Name:      "chat_turn_duration_seconds",
			Help:      "End-to-end send-message turn latency.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
