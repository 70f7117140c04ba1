// Package tracing exposes the harvesting engine's OpenTelemetry tracer.
//
// GetTracer returns the shared tracer used to wrap each harvest run, each
// per-source scrape, and each persistence retry in a span, so a single run
// can be followed end to end in a trace backend.
package tracing
