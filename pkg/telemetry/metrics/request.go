package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Pocket/content-monorepo-sub003/pkg/config"
)

// RequestMetrics tracks HTTP requests served by the API.
//
// Metrics:
//   - prospects_http_requests_total: Requests by method, route and status
//   - prospects_http_request_duration_seconds: Request duration histogram
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.requestDuration)

	return rm
}

// RecordRequest records one request. route is the matched route pattern,
// never the raw path.
func (rm *RequestMetrics) RecordRequest(method, route string, status int, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	rm.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
