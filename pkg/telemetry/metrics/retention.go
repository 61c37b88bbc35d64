package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Pocket/content-monorepo-sub003/pkg/config"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// RetentionMetrics tracks partition sweeps.
//
// Metrics:
//   - prospects_retention_sweeps_total: Sweeps by surface, type and outcome
//   - prospects_retention_sweep_duration_seconds: Sweep duration histogram
//   - prospects_retention_records_deleted_total: Records removed
//   - prospects_retention_records_failed_total: Stale records left behind
//   - prospects_retention_delete_chunks_total: Bulk delete calls issued
type RetentionMetrics struct {
	sweepsTotal   *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec
	deletedTotal  *prometheus.CounterVec
	failedTotal   *prometheus.CounterVec
	chunksTotal   *prometheus.CounterVec
}

// NewRetentionMetrics creates and registers retention metrics with the provided registry.
func NewRetentionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RetentionMetrics {
	rm := &RetentionMetrics{
		sweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "retention",
				Name:      "sweeps_total",
				Help:      "Total number of partition sweeps",
			},
			[]string{"surface", "candidate_type", "outcome"},
		),

		sweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "retention",
				Name:      "sweep_duration_seconds",
				Help:      "Duration of partition sweeps in seconds",
				Buckets:   cfg.SweepDurationBuckets,
			},
			[]string{"surface", "candidate_type"},
		),

		deletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "retention",
				Name:      "records_deleted_total",
				Help:      "Total number of stale records deleted",
			},
			[]string{"surface", "candidate_type"},
		),

		failedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "retention",
				Name:      "records_failed_total",
				Help:      "Total number of stale records whose deletion failed",
			},
			[]string{"surface", "candidate_type"},
		),

		chunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "retention",
				Name:      "delete_chunks_total",
				Help:      "Total number of bulk delete calls issued by sweeps",
			},
			[]string{"surface", "candidate_type"},
		),
	}

	registry.MustRegister(
		rm.sweepsTotal,
		rm.sweepDuration,
		rm.deletedTotal,
		rm.failedTotal,
		rm.chunksTotal,
	)

	return rm
}

// RecordSweep records one sweep.
func (rm *RetentionMetrics) RecordSweep(surface, candidateType, outcome string, duration time.Duration, result prospect.EvictionResult) {
	rm.sweepsTotal.WithLabelValues(surface, candidateType, outcome).Inc()
	rm.sweepDuration.WithLabelValues(surface, candidateType).Observe(duration.Seconds())

	if result.DeletedCount > 0 {
		rm.deletedTotal.WithLabelValues(surface, candidateType).Add(float64(result.DeletedCount))
	}
	if n := len(result.FailedIDs); n > 0 {
		rm.failedTotal.WithLabelValues(surface, candidateType).Add(float64(n))
	}
	if result.Chunks > 0 {
		rm.chunksTotal.WithLabelValues(surface, candidateType).Add(float64(result.Chunks))
	}
}
