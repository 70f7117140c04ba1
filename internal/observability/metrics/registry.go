// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestSize measures HTTP request body size in bytes
	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks the number of active HTTP connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)
)

// Business metrics track harvesting-specific operations
var (
	// RecordsTotal tracks total number of records in the durable store
	RecordsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "records_total",
			Help: "Total number of records in the durable store",
		},
	)

	// SourcesTotal tracks total number of configured sources with stored records
	SourcesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sources_total",
			Help: "Total number of sources with at least one stored record",
		},
	)

	// RecordsExtractedTotal counts records extracted from each source
	RecordsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_extracted_total",
			Help: "Total number of records extracted from sources",
		},
		[]string{"source"},
	)

	// NormalizeEnrichedTotal counts normalization batches by AI-enrichment status
	NormalizeEnrichedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "normalize_enriched_total",
			Help: "Total number of normalization batches by enrichment status",
		},
		[]string{"status"}, // status: ai_ok, ai_failed, rule_only
	)

	// EnrichDuration measures time to run an AI enrichment batch call
	EnrichDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enrich_duration_seconds",
			Help:    "Time taken to run one AI enrichment batch call",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// SourceRunDuration measures time to scrape a single source
	SourceRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_run_duration_seconds",
			Help:    "Time taken to scrape a single source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source"},
	)

	// SourceRunErrors counts errors during a source scrape, by skip reason
	SourceRunErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_run_errors_total",
			Help: "Total number of source scrape failures by skip reason",
		},
		[]string{"source", "reason"}, // reason: robots, no_selectors, fetch_error, extract_error
	)

	// FetchAttemptsTotal counts raw HTTP fetch attempts by result
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_attempts_total",
			Help: "Total number of HTTP fetch attempts",
		},
		[]string{"result"}, // result: success, failure, cache_hit
	)

	// FetchDuration measures time to fetch a source's raw body
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Time taken to fetch a source's raw body",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// FetchBodySize measures fetched body size in bytes
	FetchBodySize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "fetch_body_size_bytes",
			Help: "Fetched body size in bytes",
			Buckets: []float64{
				100, 200, 400, 800, 1600, 3200, 6400, 12800,
				25600, 51200, 102400, 204800, 409600, 819200,
				1638400, 3276800, 6553600, 10485760, // up to 10MB
			},
		},
	)

	// PartialPersistenceTotal counts runs where the repository save failed
	// even after the engine's one retry
	PartialPersistenceTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "partial_persistence_total",
			Help: "Total number of harvesting runs reported as PartialPersistence",
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if requestSize > 0 {
		HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordOperationDuration records the duration of a named operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
