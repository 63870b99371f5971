// Package observability provides structured logging, Prometheus metrics,
// optional OpenTelemetry tracing, and health probes for the ReelGate
// service.
package observability
