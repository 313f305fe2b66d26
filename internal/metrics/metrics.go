// Package metrics exposes Prometheus instrumentation for catalog reloads and
// recommendation traffic.
//
// Usage:
//
//	RecordReload("wiki", "success", 3*time.Second)
//	RecordSnapshot(48, 4)
//	RecordRecommendation(120 * time.Microsecond)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reload outcomes used as the result label.
const (
	ResultSuccess           = "success"
	ResultSourceUnavailable = "source_unavailable"
	ResultMalformed         = "malformed"
	ResultDegenerate        = "degenerate"
	ResultTimeout           = "timeout"
)

var (
	// ReloadsTotal counts reload attempts by source and outcome.
	ReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_reloads_total",
			Help: "Total number of catalog reload attempts",
		},
		[]string{"source", "result"},
	)

	// ReloadDuration tracks how long a reload takes end to end.
	ReloadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_reload_duration_seconds",
			Help:    "Duration of catalog reloads in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"source"},
	)

	// RejectedProfilesTotal counts records dropped by the normalizer.
	RejectedProfilesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_rejected_profiles_total",
			Help: "Total number of malformed or duplicate profile records rejected",
		},
	)

	// CatalogProfiles reports the size of the published catalog.
	CatalogProfiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_profiles",
			Help: "Number of profiles in the published snapshot",
		},
	)

	// CatalogClusters reports the fitted cluster count of the published snapshot.
	CatalogClusters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_clusters",
			Help: "Effective cluster count of the published snapshot",
		},
	)

	// RecommendationsTotal counts scoring calls.
	RecommendationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Total number of recommendation requests served",
		},
	)

	// RecommendationDuration tracks scoring latency.
	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "Duration of recommendation scoring in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
	)
)

// RecordReload records one reload attempt.
func RecordReload(source, result string, d time.Duration) {
	ReloadsTotal.WithLabelValues(source, result).Inc()
	ReloadDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordRejected adds n rejected records.
func RecordRejected(n int) {
	if n > 0 {
		RejectedProfilesTotal.Add(float64(n))
	}
}

// RecordSnapshot updates the published snapshot gauges.
func RecordSnapshot(profiles, clusters int) {
	CatalogProfiles.Set(float64(profiles))
	CatalogClusters.Set(float64(clusters))
}

// RecordRecommendation records one scoring call.
func RecordRecommendation(d time.Duration) {
	RecommendationsTotal.Inc()
	RecommendationDuration.Observe(d.Seconds())
}
