// Package telemetry groups the observability packages of the prospects
// service.
//
// # Components
//
//   - logging: slog setup with context identifiers
//   - metrics: Prometheus collector for sweeps, retries, ingest and HTTP
//   - tracing: OpenTelemetry provider with an OTLP gRPC exporter
//   - health: liveness and readiness checks
package telemetry
