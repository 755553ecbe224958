package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Interactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lily_interactions_total",
			Help: "Processed user messages by profile and result",
		},
		[]string{"profile", "result"},
	)

	InteractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lily_interaction_duration_seconds",
			Help:    "Time from user message to final reply",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"profile"},
	)

	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lily_tool_calls_total",
			Help: "Tool invocations recorded in history by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lily_memory_reconcile_total",
			Help: "End-of-interaction memory decisions by outcome",
		},
		[]string{"outcome"},
	)

	PrefetchDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lily_memory_prefetch_degraded_total",
			Help: "Interactions that ran without memory because the fact store was unavailable",
		},
	)
)
