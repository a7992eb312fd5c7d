// Package metrics holds the Prometheus collectors for the claim pipeline.
//
// Collectors are registered on an injected registry so that tests and
// multiple processors in one binary never collide. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "claimcheck"

// Metrics groups all pipeline collectors
type Metrics struct {
	// generationAttempts counts generator attempts.
	// Labels: provider, outcome (success, error, empty)
	generationAttempts *prometheus.CounterVec

	// evidenceRequests counts evidence provider calls.
	// Labels: provider, outcome (success, error, cache_hit)
	evidenceRequests *prometheus.CounterVec

	// stageDuration measures each pipeline stage.
	// Labels: stage
	stageDuration *prometheus.HistogramVec

	// claims counts finished pipeline runs.
	// Labels: outcome (completed, rejected, validation, generation, pipeline)
	claims *prometheus.CounterVec

	// httpRequests counts API requests.
	// Labels: route, status
	httpRequests *prometheus.CounterVec

	// httpDuration measures API request latency.
	// Labels: route
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		generationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempts_total",
			Help:      "Text generation attempts by provider and outcome",
		}, []string{"provider", "outcome"}),

		evidenceRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evidence",
			Name:      "requests_total",
			Help:      "Evidence provider calls by provider and outcome",
		}, []string{"provider", "outcome"}),

		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"stage"}),

		claims: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "claims_total",
			Help:      "Processed claims by outcome",
		}, []string{"outcome"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route and status",
		}, []string{"route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// GenerationAttempt records one generator attempt
func (m *Metrics) GenerationAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.generationAttempts.WithLabelValues(provider, outcome).Inc()
}

// EvidenceRequest records one evidence provider call
func (m *Metrics) EvidenceRequest(provider, outcome string) {
	if m == nil {
		return
	}
	m.evidenceRequests.WithLabelValues(provider, outcome).Inc()
}

// ObserveStage records the duration of a pipeline stage
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ClaimProcessed records the outcome of one pipeline run
func (m *Metrics) ClaimProcessed(outcome string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(outcome).Inc()
}

// HTTPRequest records one API request
func (m *Metrics) HTTPRequest(route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, status).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
