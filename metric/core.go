// Package metric wraps prometheus registration for pipeline components.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the pipeline-level metrics shared across components.
// Component-specific metrics are registered per component through the
// MetricsRegistry.
type Metrics struct {
	// Ingestion metrics
	EventsReceived     *prometheus.CounterVec
	ReadingsRouted     *prometheus.CounterVec
	RecordsSkipped     *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec

	// Checkpoint metrics
	CheckpointsCommitted *prometheus.CounterVec
	CheckpointLag        *prometheus.GaugeVec

	// Persistence metrics
	ReadingsPersisted *prometheus.CounterVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all pipeline metrics
func NewMetrics() *Metrics {
	return &Metrics{
		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shft",
				Subsystem: "ingest",
				Name:      "events_received_total",
				Help:      "Total stream events received per partition",
			},
			[]string{"partition"},
		),

		ReadingsRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shft",
				Subsystem: "ingest",
				Name:      "readings_routed_total",
				Help:      "Readings delivered to a subsystem state holder",
			},
			[]string{"subsystem", "type"},
		),

		RecordsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shft",
				Subsystem: "ingest",
				Name:      "records_skipped_total",
				Help:      "Records skipped by the pipeline (stale, parse failure, unknown type)",
			},
			[]string{"reason"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "shft",
				Subsystem: "ingest",
				Name:      "batch_duration_seconds",
				Help:      "Batch processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"partition"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shft",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "class"},
		),

		CheckpointsCommitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shft",
				Subsystem: "checkpoint",
				Name:      "committed_total",
				Help:      "Checkpoint commits per partition",
			},
			[]string{"partition"},
		),

		CheckpointLag: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "shft",
				Subsystem: "checkpoint",
				Name:      "events_since_commit",
				Help:      "Events processed since the last checkpoint commit",
			},
			[]string{"partition"},
		),

		ReadingsPersisted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shft",
				Subsystem: "store",
				Name:      "readings_persisted_total",
				Help:      "Readings written to the historical store",
			},
			[]string{"subsystem", "type"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "shft",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "shft",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}
