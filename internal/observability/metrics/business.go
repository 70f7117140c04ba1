package metrics

import (
	"time"
)

// RecordRecordsExtracted records the number of records extracted from a source.
func RecordRecordsExtracted(source string, count int) {
	RecordsExtractedTotal.WithLabelValues(source).Add(float64(count))
}

// RecordNormalizeEnriched records the outcome of one normalization batch's AI
// enrichment attempt. Use "rule_only" when AI enrichment was never attempted
// (disabled or no enricher configured).
func RecordNormalizeEnriched(status string) {
	NormalizeEnrichedTotal.WithLabelValues(status).Inc()
}

// RecordEnrichDuration records the time taken by one AI enrichment batch call.
func RecordEnrichDuration(duration time.Duration) {
	EnrichDuration.Observe(duration.Seconds())
}

// RecordSourceRun records metrics for one source scrape.
func RecordSourceRun(source string, duration time.Duration, recordsFound int) {
	SourceRunDuration.WithLabelValues(source).Observe(duration.Seconds())
	if recordsFound > 0 {
		RecordRecordsExtracted(source, recordsFound)
	}
}

// RecordSourceRunError records a source scrape failure, keyed by the same
// skip-reason values the engine reports in SourceOutcome.SkippedBy, plus
// "extract_error" for extraction failures, which leave SkippedBy empty.
func RecordSourceRunError(source, reason string) {
	SourceRunErrors.WithLabelValues(source, reason).Inc()
}

// RecordFetchSuccess records a successful raw HTTP fetch.
func RecordFetchSuccess(duration time.Duration, size int) {
	FetchAttemptsTotal.WithLabelValues("success").Inc()
	FetchDuration.Observe(duration.Seconds())
	FetchBodySize.Observe(float64(size))
}

// RecordFetchFailed records a failed raw HTTP fetch.
func RecordFetchFailed(duration time.Duration) {
	FetchAttemptsTotal.WithLabelValues("failure").Inc()
	FetchDuration.Observe(duration.Seconds())
}

// RecordFetchCacheHit records a fetch served from htmlcache without a round trip.
func RecordFetchCacheHit() {
	FetchAttemptsTotal.WithLabelValues("cache_hit").Inc()
}

// RecordPartialPersistence records a run that completed processing but
// failed to durably persist its batch even after one retry.
func RecordPartialPersistence() {
	PartialPersistenceTotal.Inc()
}

// UpdateRecordsTotal updates the total count of records in the durable store.
// This gauge should be updated periodically to reflect the current state.
func UpdateRecordsTotal(count int) {
	RecordsTotal.Set(float64(count))
}

// UpdateSourcesTotal updates the total count of sources with stored records.
// This gauge should be updated periodically to reflect the current state.
func UpdateSourcesTotal(count int) {
	SourcesTotal.Set(float64(count))
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "save", "list", "count").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
