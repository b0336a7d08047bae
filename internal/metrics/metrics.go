// Package metrics exposes Prometheus instruments for scoring, precompute and
// training.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScoresTotal counts scored companies by mode and final tier.
	ScoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscout_scores_total",
			Help: "Total number of companies scored",
		},
		[]string{"mode", "tier"},
	)

	// ScoreFallbacksTotal counts scoring calls that returned the fallback result.
	ScoreFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealscout_score_fallbacks_total",
			Help: "Total number of scoring calls answered with a fallback result",
		},
	)

	// CoherenceAdjustmentsTotal counts results whose probability or score was clamped.
	CoherenceAdjustmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealscout_coherence_adjustments_total",
			Help: "Total number of results adjusted by tier reconciliation",
		},
	)

	// PrecomputeRowsTotal counts precompute rows by outcome (invest, monitor,
	// avoid, reused, skipped, failed).
	PrecomputeRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscout_precompute_rows_total",
			Help: "Total number of rows handled by precompute",
		},
		[]string{"outcome"},
	)

	// TrainingDuration tracks full training runs.
	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dealscout_training_duration_seconds",
			Help:    "Duration of training runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"kind", "cache_hit"},
	)

	// ArtifactCacheLookups counts artifact cache lookups by result.
	ArtifactCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscout_artifact_cache_lookups_total",
			Help: "Total number of artifact cache lookups",
		},
		[]string{"result"},
	)

	// LiveSetInfo is 1 for the currently published set source.
	LiveSetInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dealscout_live_set",
			Help: "Currently published artifact set (1 = live)",
		},
		[]string{"source"},
	)

	// HTTPRequestsTotal counts API requests by route pattern, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealscout_http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDuration tracks API latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dealscout_http_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// RecordScore records one scoring call.
func RecordScore(mode, tier string, fallback, adjusted bool) {
	ScoresTotal.WithLabelValues(mode, tier).Inc()
	if fallback {
		ScoreFallbacksTotal.Inc()
	}
	if adjusted {
		CoherenceAdjustmentsTotal.Inc()
	}
}

// RecordTraining records one training run.
func RecordTraining(kind string, cacheHit bool, d time.Duration) {
	hit := "false"
	if cacheHit {
		hit = "true"
	}
	TrainingDuration.WithLabelValues(kind, hit).Observe(d.Seconds())
}

// RecordCacheLookup records one artifact cache lookup.
func RecordCacheLookup(hit bool) {
	if hit {
		ArtifactCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	ArtifactCacheLookups.WithLabelValues("miss").Inc()
}

// SetLive marks source as the published set.
func SetLive(source string) {
	LiveSetInfo.Reset()
	LiveSetInfo.WithLabelValues(source).Set(1)
}

// RecordRequest records one API request.
func RecordRequest(route, method string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
