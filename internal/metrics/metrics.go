package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cie_invalidations_total",
			Help: "Total number of result invalidations by reason and outcome",
		},
		[]string{"reason", "action"},
	)

	RecomputedResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cie_recomputed_results_total",
			Help: "Total number of subject results persisted by recomputation",
		},
	)

	RecomputeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cie_recompute_failures_total",
			Help: "Total number of per-student recomputation failures by stage",
		},
		[]string{"stage"},
	)

	RecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cie_recompute_duration_seconds",
			Help:    "Duration of a subject recomputation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FinalScoreHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cie_final_out_of_15",
			Help:    "Distribution of recomputed final subject scores",
			Buckets: prometheus.LinearBuckets(0, 3, 6),
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
