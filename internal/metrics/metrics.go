// Package metrics holds the Prometheus collectors shared by the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "curator"

var (
	CurationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "curations_total",
			Help:      "Curation decisions by strategy and action.",
		},
		[]string{"strategy", "action"},
	)

	CurationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "curation_duration_seconds",
			Help:      "End-to-end Curate latency, cache hits included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	LayerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layer_duration_seconds",
			Help:      "Latency of each pipeline layer.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"layer"},
	)

	LayerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_errors_total",
			Help:      "Absorbed layer timeouts and failures.",
		},
		[]string{"layer", "kind"},
	)

	FastFilterBlocks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "blocks_total",
			Help:      "Items blocked by the fast filter, by category.",
		},
		[]string{"category"},
	)

	ReasoningCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reasoning",
			Name:      "calls_total",
			Help:      "Reasoning calls by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result (hit or miss).",
		},
		[]string{"result"},
	)

	EscalationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "enqueued_total",
			Help:      "Items accepted by the escalation queue.",
		},
		[]string{"priority"},
	)

	EscalationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "dropped_total",
			Help:      "Items dropped because their priority band was full.",
		},
		[]string{"priority"},
	)

	EscalationsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "forwarded_total",
			Help:      "Items handed to the durable sink, by outcome.",
		},
		[]string{"outcome"},
	)

	EscalationQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "queue_depth",
			Help:      "Items waiting in each priority band.",
		},
		[]string{"priority"},
	)
)
