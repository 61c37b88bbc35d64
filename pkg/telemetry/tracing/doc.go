// Package tracing configures OpenTelemetry distributed tracing.
//
// New installs a global tracer provider that exports spans over OTLP gRPC.
// Components obtain tracers with otel.Tracer and never depend on this
// package's Tracer directly, so a disabled configuration leaves them on the
// global noop provider.
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: "otel-collector:4317"
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
package tracing
