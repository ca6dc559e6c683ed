// Package metrics exposes Prometheus instrumentation for the copilot
// pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_requests_total",
			Help: "Total analyze requests by outcome",
		},
		[]string{"outcome"},
	)

	requestLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "copilot_request_latency_seconds",
			Help:    "End-to-end analyze request latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "copilot_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "outcome"},
	)

	providerFailovers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "copilot_provider_failovers_total",
			Help: "Completions that required failover to the secondary provider",
		},
	)

	retrievalChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "copilot_retrieval_chunks",
			Help:    "Evidence chunks returned per request",
			Buckets: []float64{0, 1, 2, 4, 8, 16},
		},
	)
)

// ObserveRequest records one completed analyze request.
func ObserveRequest(outcome string, duration time.Duration) {
	requestsTotal.WithLabelValues(outcome).Inc()
	requestLatency.Observe(duration.Seconds())
}

// ObserveStage records one pipeline stage execution.
func ObserveStage(stage, outcome string, duration time.Duration) {
	stageDuration.WithLabelValues(stage, outcome).Observe(duration.Seconds())
}

// ObserveFailover records a completion that switched providers.
func ObserveFailover() {
	providerFailovers.Inc()
}

// ObserveRetrieval records the evidence set size for a request.
func ObserveRetrieval(chunks int) {
	retrievalChunks.Observe(float64(chunks))
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
