// Package metrics exposes Prometheus instruments for ingestion and chat.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oraculo"

// Metrics groups every instrument. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cataloged      *prometheus.CounterVec
	indexed        *prometheus.CounterVec
	chunks         prometheus.Counter
	messages       *prometheus.CounterVec
	llmDuration    *prometheus.HistogramVec
	retrieved      prometheus.Histogram
	activeSessions prometheus.Gauge
	httpRequests   *prometheus.CounterVec
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		cataloged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_cataloged_total",
			Help:      "Catalog outcomes per scanned file.",
		}, []string{"outcome"}),
		indexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_indexed_total",
			Help:      "Indexing outcomes per document.",
		}, []string{"outcome"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks upserted into the vector index.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Handled chat messages by reply kind.",
		}, []string{"kind"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Language model call latency.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}, []string{"outcome"}),
		retrieved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_results",
			Help:      "Chunks returned per retrieval.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Conversation sessions held in memory.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(m.cataloged, m.indexed, m.chunks, m.messages, m.llmDuration,
		m.retrieved, m.activeSessions, m.httpRequests)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Cataloged(outcome string) {
	if m == nil {
		return
	}
	m.cataloged.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Indexed(outcome string, chunks int) {
	if m == nil {
		return
	}
	m.indexed.WithLabelValues(outcome).Inc()
	m.chunks.Add(float64(chunks))
}

func (m *Metrics) Message(kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind).Inc()
}

func (m *Metrics) LLMCall(start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.llmDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Retrieved(n int) {
	if m == nil {
		return
	}
	m.retrieved.Observe(float64(n))
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) HTTPRequest(method, route, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
}
