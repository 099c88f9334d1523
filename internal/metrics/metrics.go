// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whbot_ingest_cycle_duration_seconds",
			Help:    "Duration of ingestion cycles in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"outcome"}, // "ok", "skipped", "aborted", "failed"
	)

	PagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whbot_catalog_pages_fetched_total",
			Help: "Total number of catalog pages fetched",
		},
	)

	FetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whbot_catalog_fetch_errors_total",
			Help: "Total number of catalog page requests that failed",
		},
	)

	ListingsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whbot_listings_ingested_total",
			Help: "Total number of newly stored listings",
		},
	)

	ListingsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whbot_listings_skipped_total",
			Help: "Total number of catalog items not ingested",
		},
		[]string{"reason"}, // "duplicate", "no_key"
	)

	// Delivery
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whbot_deliveries_total",
			Help: "Total notification delivery outcomes",
		},
		[]string{"result", "via"}, // result: "ok"/"failed"; via: "photo"/"text"/"none"
	)

	ActiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whbot_active_subscribers",
			Help: "Active subscribers in the last cycle snapshot",
		},
	)

	// Tracker circuit
	TrackerHealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whbot_tracker_healthy",
			Help: "1 when tracked links are in use, 0 otherwise",
		},
	)

	TrackerProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whbot_tracker_probes_total",
			Help: "Total tracker health probes by resulting state",
		},
		[]string{"state"},
	)

	// Scheduler
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whbot_job_runs_total",
			Help: "Total scheduled job runs",
		},
		[]string{"job", "status"}, // status: "ok", "error", "panic"
	)
)
