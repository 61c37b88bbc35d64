package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Pocket/content-monorepo-sub003/pkg/config"
)

// StoreMetrics tracks backend retries.
//
// Metrics:
//   - prospects_store_retries_total: Retried backend calls by backend and operation
type StoreMetrics struct {
	retriesTotal *prometheus.CounterVec
}

// NewStoreMetrics creates and registers store metrics with the provided registry.
func NewStoreMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "store",
				Name:      "retries_total",
				Help:      "Total number of retried backend calls",
			},
			[]string{"backend", "operation"},
		),
	}

	registry.MustRegister(sm.retriesTotal)

	return sm
}

// RecordRetry records one retry.
func (sm *StoreMetrics) RecordRetry(backend, operation string) {
	sm.retriesTotal.WithLabelValues(backend, operation).Inc()
}
