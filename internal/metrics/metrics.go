package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgenius_stage_outcomes_total",
			Help: "Pipeline stage completions by outcome (succeeded, degraded, failed)",
		},
		[]string{"stage", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adgenius_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"stage"},
	)

	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgenius_provider_retries_total",
			Help: "Backoff retries scheduled for provider calls",
		},
		[]string{"operation"},
	)

	TierFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgenius_tier_fallbacks_total",
			Help: "Abandoned attempts that fell through to the next tier",
		},
		[]string{"operation", "from"},
	)

	GenerationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adgenius_generations_active",
			Help: "Generations currently in flight",
		},
	)

	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adgenius_exports_total",
			Help: "Composited artifacts exported",
		},
		[]string{"aspect_ratio"},
	)
)
