package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Pocket/content-monorepo-sub003/pkg/config"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// DefaultMaxSurfaces bounds the number of distinct surface label values.
// Surfaces come from ingested messages, so past the limit new surfaces are
// reported as "other".
const DefaultMaxSurfaces = 256

// Collector owns every Prometheus metric of the service. It implements the
// recorder interfaces of the retention sweeper, the store, the ingest
// processor and the HTTP server.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	retentionMetrics *RetentionMetrics
	storeMetrics     *StoreMetrics
	ingestMetrics    *IngestMetrics
	requestMetrics   *RequestMetrics

	surfaces *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics with registry.
// A nil registry gets a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := cfg
	if c == nil {
		c = &config.MetricsConfig{}
	}
	if c.Namespace == "" {
		c.Namespace = config.DefaultMetricsNamespace
	}
	if len(c.SweepDurationBuckets) == 0 {
		c.SweepDurationBuckets = config.DefaultSweepDurationBuckets
	}

	return &Collector{
		config:           c,
		registry:         registry,
		retentionMetrics: NewRetentionMetrics(c, registry),
		storeMetrics:     NewStoreMetrics(c, registry),
		ingestMetrics:    NewIngestMetrics(c, registry),
		requestMetrics:   NewRequestMetrics(c, registry),
		surfaces:         NewCardinalityLimiter(DefaultMaxSurfaces),
	}
}

// Registry returns the registry the collector's metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordSweep records one completed partition sweep.
func (c *Collector) RecordSweep(partition prospect.Partition, outcome string, duration time.Duration, result prospect.EvictionResult) {
	surface := c.surfaceLabel(partition.SurfaceGUID)
	c.retentionMetrics.RecordSweep(surface, string(partition.CandidateType), outcome, duration, result)
}

// RecordStoreRetry records one retried backend call.
func (c *Collector) RecordStoreRetry(backend, operation string) {
	c.storeMetrics.RecordRetry(backend, operation)
}

// RecordIngest records one processed message.
func (c *Collector) RecordIngest(outcome string, candidates int) {
	c.ingestMetrics.RecordMessage(outcome, candidates)
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.requestMetrics.RecordRequest(method, route, status, duration)
}

func (c *Collector) surfaceLabel(surface string) string {
	if !c.surfaces.Allow(surface) {
		return "other"
	}
	return surface
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label value is allowed. Returns true if the value
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[value]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
