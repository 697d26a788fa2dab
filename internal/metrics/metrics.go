// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngestStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_started_total",
			Help: "Cumulative number of ingestion units started.",
		})

	IngestCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_completed_total",
			Help: "Cumulative number of ingestion units that reached completed.",
		})

	IngestFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_failed_total",
			Help: "Cumulative number of ingestion units that ended failed.",
		})

	RollbackErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_rollback_errors_total",
			Help: "Rollback attempts that themselves failed, leaving orphaned objects.",
		})

	UploadedObjectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_uploaded_objects_total",
			Help: "Objects successfully uploaded to the storage backend.",
		})

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_queue_depth",
			Help: "Ingestion tasks waiting for a pool worker.",
		})

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "Wall time of one ingestion unit, validate through finalize.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		})
)

func init() {
	prometheus.MustRegister(
		IngestStartedTotal,
		IngestCompletedTotal,
		IngestFailedTotal,
		RollbackErrorsTotal,
		UploadedObjectsTotal,
		QueueDepth,
		IngestDuration,
	)
}
