// Package metrics exposes the service's Prometheus metrics.
//
// A single Collector is created at startup with its own registry and handed
// to the components that record into it:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	sweeper.SetRecorder(collector)
//	store.SetRetryRecorder(collector)
//	processor.SetRecorder(collector)
//
// All metric names are prefixed with the configured namespace
// ("prospects" by default).
package metrics
