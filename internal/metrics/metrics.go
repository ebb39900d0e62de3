// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Evaluations   prometheus.Counter
	Confirmations *prometheus.CounterVec // outcome: confirmed, declined
	PendingExits  prometheus.Gauge
	ViewsRecorded prometheus.Counter
	Analyses      *prometheus.CounterVec // source: ai, heuristic
	CacheHits     *prometheus.CounterVec // scope: user, global
	CacheMisses   *prometheus.CounterVec
	ScannerRuns   *prometheus.CounterVec // result: ok, skipped
}

// New registers all collectors on reg. Tests pass a fresh registry to stay
// isolated from each other.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Evaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "polypilot_evaluations_total",
			Help: "Full (non-cooldown) auto-exit evaluations run.",
		}),
		Confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "polypilot_confirmations_total",
			Help: "Exit confirmation outcomes.",
		}, []string{"outcome"}),
		PendingExits: factory.NewGauge(prometheus.GaugeOpts{
			Name: "polypilot_pending_exits",
			Help: "Pending exits currently queued across all users.",
		}),
		ViewsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "polypilot_tweet_views_total",
			Help: "Tweet views recorded (including duplicates).",
		}),
		Analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "polypilot_sentiment_analyses_total",
			Help: "Sentiment analyses by result source.",
		}, []string{"source"}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "polypilot_insight_cache_hits_total",
			Help: "Insight cache hits by scope.",
		}, []string{"scope"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "polypilot_insight_cache_misses_total",
			Help: "Insight cache misses by scope.",
		}, []string{"scope"}),
		ScannerRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "polypilot_scanner_runs_total",
			Help: "Market scanner run outcomes.",
		}, []string{"result"}),
	}
}
