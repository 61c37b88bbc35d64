package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Pocket/content-monorepo-sub003/pkg/config"
)

// IngestMetrics tracks processed candidate batches.
//
// Metrics:
//   - prospects_ingest_messages_total: Messages by outcome
//   - prospects_ingest_candidates_total: Candidates carried by those messages
type IngestMetrics struct {
	messagesTotal   *prometheus.CounterVec
	candidatesTotal *prometheus.CounterVec
}

// NewIngestMetrics creates and registers ingest metrics with the provided registry.
func NewIngestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *IngestMetrics {
	im := &IngestMetrics{
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "ingest",
				Name:      "messages_total",
				Help:      "Total number of candidate batch messages processed",
			},
			[]string{"outcome"},
		),

		candidatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "ingest",
				Name:      "candidates_total",
				Help:      "Total number of candidates in processed messages",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(im.messagesTotal, im.candidatesTotal)

	return im
}

// RecordMessage records one message.
func (im *IngestMetrics) RecordMessage(outcome string, candidates int) {
	im.messagesTotal.WithLabelValues(outcome).Inc()
	if candidates > 0 {
		im.candidatesTotal.WithLabelValues(outcome).Add(float64(candidates))
	}
}
