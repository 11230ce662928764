// Package metrics provides Prometheus instrumentation for the service's
// HTTP surface, DLQ, event stream, and synthesis/search components.
//
// Grounded on the r3e-network-service_layer pack repo's
// infrastructure/metrics/metrics.go (the only example repo that wires
// github.com/prometheus/client_golang directly) — same New/NewWithRegistry
// shape, CounterVec/HistogramVec/Gauge collector set, and MustRegister-once
// pattern — generalized from that repo's HTTP/blockchain/database domains
// to this service's request, DLQ, and event-stream domains. The teacher's
// own internal/metrics package is a risk-score calculator (coupling,
// churn, test ratio), not an observability package, so it contributed no
// code here beyond the shared package name.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector this service registers.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	DLQDepth       *prometheus.GaugeVec
	DLQRetries     *prometheus.CounterVec
	DLQAbandoned   *prometheus.CounterVec

	EventStreamLagSeconds prometheus.Gauge
	EventsEmittedTotal    *prometheus.CounterVec

	SynthesisDuration *prometheus.HistogramVec
	SearchDuration    *prometheus.HistogramVec

	EmbeddingCacheHits   prometheus.Counter
	EmbeddingCacheMisses prometheus.Counter
}

// New registers every collector against prometheus.DefaultRegisterer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry is the seam tests use to avoid colliding with the
// package-global default registry across test runs.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphkg_http_requests_total",
				Help: "Total number of HTTP requests served.",
			},
			[]string{"service", "method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphkg_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "route"},
		),
		DLQDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "graphkg_dlq_depth",
				Help: "Current number of dead-letter entries by status.",
			},
			[]string{"status"},
		),
		DLQRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphkg_dlq_retries_total",
				Help: "Total number of dead-letter retry attempts.",
			},
			[]string{"outcome"},
		),
		DLQAbandoned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphkg_dlq_abandoned_total",
				Help: "Total number of dead-letter entries abandoned after exhausting retries.",
			},
			[]string{"tenant"},
		),
		EventStreamLagSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "graphkg_event_stream_lag_seconds",
				Help: "Seconds between the newest polled event and now.",
			},
		),
		EventsEmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphkg_events_emitted_total",
				Help: "Total number of events emitted to long-poll subscribers.",
			},
			[]string{"event_type"},
		),
		SynthesisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphkg_synthesis_duration_seconds",
				Help:    "Context synthesis wall-clock duration in seconds.",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"outcome"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphkg_search_duration_seconds",
				Help:    "Semantic search query duration in seconds.",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"outcome"},
		),
		EmbeddingCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "graphkg_embedding_cache_hits_total",
				Help: "Total number of embedding cache hits.",
			},
		),
		EmbeddingCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "graphkg_embedding_cache_misses_total",
				Help: "Total number of embedding cache misses.",
			},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.DLQDepth,
			m.DLQRetries,
			m.DLQAbandoned,
			m.EventStreamLagSeconds,
			m.EventsEmittedTotal,
			m.SynthesisDuration,
			m.SearchDuration,
			m.EmbeddingCacheHits,
			m.EmbeddingCacheMisses,
		)
	}

	return m
}

func (m *Metrics) RecordRequest(method, route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues("graphkg", method, route, status).Inc()
	m.RequestDuration.WithLabelValues("graphkg", method, route).Observe(duration.Seconds())
}

func (m *Metrics) SetDLQDepth(status string, n int) {
	m.DLQDepth.WithLabelValues(status).Set(float64(n))
}

func (m *Metrics) RecordDLQRetry(outcome string) {
	m.DLQRetries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordDLQAbandoned(tenantID string) {
	m.DLQAbandoned.WithLabelValues(tenantID).Inc()
}

func (m *Metrics) SetEventStreamLag(d time.Duration) {
	m.EventStreamLagSeconds.Set(d.Seconds())
}

func (m *Metrics) RecordEventEmitted(eventType string) {
	m.EventsEmittedTotal.WithLabelValues(eventType).Inc()
}

func (m *Metrics) RecordSynthesis(outcome string, duration time.Duration) {
	m.SynthesisDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) RecordSearch(outcome string, duration time.Duration) {
	m.SearchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) RecordEmbeddingCache(hit bool) {
	if hit {
		m.EmbeddingCacheHits.Inc()
		return
	}
	m.EmbeddingCacheMisses.Inc()
}
