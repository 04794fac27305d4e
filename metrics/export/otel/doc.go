// Package otel publishes linkauth counters and latency histograms through an
// OpenTelemetry meter. Callers own the MeterProvider; a single callback reads
// the engine snapshot on every collection.
package otel
