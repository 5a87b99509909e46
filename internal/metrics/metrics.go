// Package metrics holds the prometheus instruments for batch writes and
// live subscriptions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "firedesk"

// Chunk results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics is one set of instruments registered with a single registry.
type Metrics struct {
	BatchChunks         *prometheus.CounterVec
	BatchDocuments      *prometheus.CounterVec
	ActiveSubscriptions prometheus.Gauge
	Deliveries          prometheus.Counter
	DeliveryErrors      prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the instruments with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWith(reg, reg)
}

// NewWith registers the instruments with reg; g serves them.
func NewWith(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BatchChunks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "chunks_total",
				Help:      "Batch chunks committed, by operation and result",
			},
			[]string{"op", "result"},
		),
		BatchDocuments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "documents_total",
				Help:      "Documents written by committed chunks, by operation",
			},
			[]string{"op"},
		),
		ActiveSubscriptions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "listen",
				Name:      "active_subscriptions",
				Help:      "Open live query subscriptions",
			},
		),
		Deliveries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "listen",
				Name:      "deliveries_total",
				Help:      "Snapshots delivered to subscribers",
			},
		),
		DeliveryErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "listen",
				Name:      "errors_total",
				Help:      "Errors reported to subscription error handlers",
			},
		),
		gatherer: g,
	}
}

// ChunkDone records one committed or failed chunk of size docs.
func (m *Metrics) ChunkDone(op string, docs int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.BatchChunks.WithLabelValues(op, ResultError).Inc()
		return
	}
	m.BatchChunks.WithLabelValues(op, ResultOK).Inc()
	m.BatchDocuments.WithLabelValues(op).Add(float64(docs))
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
