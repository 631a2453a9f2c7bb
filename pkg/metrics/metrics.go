// Package metrics defines the Prometheus metric collectors used by the
// synchronization engine and its HTTP surfaces, and exposes a scrape handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RunsTotal            *prometheus.CounterVec
	RunDuration          *prometheus.HistogramVec
	ContentTypeFailures  *prometheus.CounterVec
	DocsIndexedTotal     *prometheus.CounterVec
	DocsDeletedTotal     *prometheus.CounterVec
	TranslationErrors    *prometheus.CounterVec
	BulkPayloadsTotal    prometheus.Counter
	BulkPayloadChars     prometheus.Histogram
	ReplacementSteps     *prometheus.CounterVec
	LockConflictsTotal   prometheus.Counter
	SitemapRefreshTotal  *prometheus.CounterVec
	SitemapURLs          prometheus.Gauge
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.05, 0.25, 1, 5, 30, 120, 600, 1800},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexing_runs_total",
				Help: "Indexing runs by mode, data stage and outcome (success, partial, rejected).",
			},
			[]string{"mode", "stage", "outcome"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexing_run_duration_seconds",
				Help:    "Wall-clock duration of indexing runs.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14),
			},
			[]string{"mode", "stage"},
		),
		ContentTypeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexing_content_type_failures_total",
				Help: "Content types whose run aborted on a store or upstream failure.",
			},
			[]string{"content_type"},
		),
		DocsIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexing_documents_indexed_total",
				Help: "Documents submitted as index operations.",
			},
			[]string{"content_type"},
		),
		DocsDeletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexing_documents_deleted_total",
				Help: "Stale documents submitted as delete operations.",
			},
			[]string{"content_type"},
		),
		TranslationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexing_translation_errors_total",
				Help: "Source entities that failed translation.",
			},
			[]string{"content_type"},
		),
		BulkPayloadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexing_bulk_payloads_total",
				Help: "Bulk payloads submitted to the document store.",
			},
		),
		BulkPayloadChars: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "indexing_bulk_payload_chars",
				Help:    "Serialized size of submitted bulk payloads.",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		ReplacementSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexing_replacement_transitions_total",
				Help: "Full-replacement state machine transitions by target state.",
			},
			[]string{"state"},
		),
		LockConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexing_lock_conflicts_total",
				Help: "Runs rejected because another run held the lease.",
			},
		),
		SitemapRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemap_refresh_total",
				Help: "Sitemap cache refreshes by status.",
			},
			[]string{"status"},
		),
		SitemapURLs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitemap_urls",
				Help: "Number of URLs in the cached sitemap.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RunsTotal,
		m.RunDuration,
		m.ContentTypeFailures,
		m.DocsIndexedTotal,
		m.DocsDeletedTotal,
		m.TranslationErrors,
		m.BulkPayloadsTotal,
		m.BulkPayloadChars,
		m.ReplacementSteps,
		m.LockConflictsTotal,
		m.SitemapRefreshTotal,
		m.SitemapURLs,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
