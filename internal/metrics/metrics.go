package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MiningInFlight tracks concurrent relative-mining model calls
	MiningInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kinstory",
		Subsystem: "mining",
		Name:      "in_flight",
		Help:      "Relative mining calls currently in flight",
	})

	// MiningOutcomes counts mining results.
	// Labels: outcome (facts, empty, parse_error, invalid, provider_error, cancelled, cached)
	MiningOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kinstory",
		Subsystem: "mining",
		Name:      "outcomes_total",
		Help:      "Relative mining outcomes",
	}, []string{"outcome"})

	// GenerationDuration measures end-to-end biography generation.
	// Labels: status (ok, invalid, insufficient, resolution_error, generation_error, persistence_error)
	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kinstory",
		Subsystem: "generation",
		Name:      "duration_seconds",
		Help:      "Biography generation latency in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"status"})

	// CitationRepairs counts citations rewritten during post-processing.
	// Labels: kind (invalid_id, malformed, stale)
	CitationRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kinstory",
		Subsystem: "citations",
		Name:      "repairs_total",
		Help:      "Citations rewritten to plain text",
	}, []string{"kind"})

	// CacheLookups counts mining cache lookups.
	// Labels: result (hit, miss)
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kinstory",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Mining cache lookups",
	}, []string{"result"})
)

// ObserveGeneration records a generation outcome
func ObserveGeneration(status string, started time.Time) {
	GenerationDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}
