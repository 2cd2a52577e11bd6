// Package observability holds the Prometheus metrics for the process
// engine. Skip reasons live here, not in the database: a skipped pair
// is observable but never persisted.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the engine.
type Metrics struct {
	ScenesProcessed *prometheus.CounterVec // labels: outcome={processed,skipped,failed}
	SceneSkips      *prometheus.CounterVec // labels: reason
	PairsCommitted  prometheus.Counter
	PairsConflicted prometheus.Counter
	PairsFailed     prometheus.Counter

	SceneDuration prometheus.Histogram
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ScenesProcessed,
		m.SceneSkips,
		m.PairsCommitted,
		m.PairsConflicted,
		m.PairsFailed,
		m.SceneDuration,
	)
	return m
}

// NewUnregisteredMetrics creates metrics without touching the default
// registry, for tests.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ScenesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glacierwatch",
			Name:      "scenes_processed_total",
			Help:      "Scenes the engine finished, by outcome.",
		}, []string{"outcome"}),
		SceneSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glacierwatch",
			Name:      "scene_skips_total",
			Help:      "Scenes skipped before computation, by reason.",
		}, []string{"reason"}),
		PairsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "glacierwatch",
			Name:      "pairs_committed_total",
			Help:      "Scene/glacier results committed to the store.",
		}),
		PairsConflicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "glacierwatch",
			Name:      "pairs_conflicted_total",
			Help:      "Scene/glacier commits lost to another replica.",
		}),
		PairsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "glacierwatch",
			Name:      "pairs_failed_total",
			Help:      "Scene/glacier computations that failed.",
		}),
		SceneDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "glacierwatch",
			Name:      "scene_processing_duration_seconds",
			Help:      "Wall time to process one scene end to end.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}
}
