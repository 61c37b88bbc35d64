package config

import (
	"time"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// Config is the root configuration structure for the prospects service.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Storage selects and configures the persistence backend.
	Storage StorageConfig `yaml:"storage"`

	// Retention contains the staleness threshold, delete ceiling and sweep
	// schedule.
	Retention RetentionConfig `yaml:"retention"`

	// Ingest contains candidate batch intake configuration.
	Ingest IngestConfig `yaml:"ingest"`

	// Telemetry contains logging, metrics, tracing and health configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Sweeps triggered over HTTP must finish within it.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps the size of an ingested message.
	// Default: 4MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is the storage backend.
	// Options: "memory", "sqlite", "redis", "postgres"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Redis contains Redis-specific configuration.
	Redis RedisConfig `yaml:"redis"`

	// Postgres contains PostgreSQL-specific configuration.
	Postgres PostgresConfig `yaml:"postgres"`

	// Retry configures the store's retry policy for backend calls.
	Retry RetryConfig `yaml:"retry"`
}

// SQLiteConfig contains SQLite storage configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/prospects.db"
	Path string `yaml:"path"`

	// Driver is the database/sql driver.
	// Options: "sqlite3" (cgo), "sqlite" (pure Go)
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// JournalMode is the SQLite journal mode.
	// Options: "wal", "delete"
	// Default: "wal"
	JournalMode string `yaml:"journal_mode"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RedisConfig contains Redis storage configuration.
type RedisConfig struct {
	// Addr is the server address.
	// Default: "127.0.0.1:6379"
	Addr string `yaml:"addr"`

	// Password is the AUTH password.
	Password string `yaml:"password"`

	// DB is the logical database number.
	DB int `yaml:"db"`

	// KeyPrefix namespaces every key.
	// Default: "prospects"
	KeyPrefix string `yaml:"key_prefix"`
}

// PostgresConfig contains PostgreSQL storage configuration.
type PostgresConfig struct {
	// DSN overrides the individual connection fields when set.
	DSN string `yaml:"dsn"`

	// Host is the PostgreSQL server hostname.
	Host string `yaml:"host"`

	// Port is the PostgreSQL server port.
	// Default: 5432
	Port int `yaml:"port"`

	// Database is the database name.
	Database string `yaml:"database"`

	// User is the database user.
	User string `yaml:"user"`

	// Password is the database password.
	Password string `yaml:"password"`

	// SSLMode controls SSL/TLS for the connection.
	// Options: "disable", "require", "verify-ca", "verify-full"
	// Default: "require"
	SSLMode string `yaml:"ssl_mode"`

	// AutoMigrate creates the prospects table on startup.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// RetryConfig contains the store's bounded retry policy.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt. Zero in
	// the file means the default; PROSPECTS_STORAGE_RETRY_MAX_RETRIES=0
	// disables retries.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// InitialBackoff is the delay before the first retry.
	// Default: 50ms
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the delay between retries.
	// Default: 2s
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// RetentionConfig contains retention and eviction configuration.
type RetentionConfig struct {
	// MaxBatchDelete is the maximum number of IDs per bulk delete call.
	// Default: 25
	MaxBatchDelete int `yaml:"max_batch_delete"`

	// MaxAgeMinutes is the staleness threshold per partition.
	// Default: 1440 (24 hours)
	MaxAgeMinutes int `yaml:"max_age_minutes"`

	// Schedule is a cron expression for scheduled sweeps. Empty disables
	// scheduled sweeps; ingestion still sweeps the partitions it touches.
	// Example: "*/30 * * * *"
	Schedule string `yaml:"schedule"`

	// Partitions lists the partitions swept by the scheduler, in order.
	Partitions []PartitionConfig `yaml:"partitions"`
}

// PartitionConfig names one surface and the candidate types swept on it.
type PartitionConfig struct {
	// SurfaceGUID is the scheduled surface identifier.
	SurfaceGUID string `yaml:"surface_guid"`

	// CandidateTypes are swept in the listed order.
	CandidateTypes []string `yaml:"candidate_types"`
}

// IngestConfig contains intake configuration.
type IngestConfig struct {
	// AllowedTypes restricts accepted candidate types. Empty allows all known types.
	AllowedTypes []string `yaml:"allowed_types"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "prospects"
	Namespace string `yaml:"namespace"`

	// SweepDurationBuckets defines histogram buckets for sweep duration (seconds).
	// Default: [0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30]
	SweepDurationBuckets []float64 `yaml:"sweep_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "prospects"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// ExpandPartitions flattens the configured surfaces and types into partitions
// in configuration order.
func (r *RetentionConfig) ExpandPartitions() []prospect.Partition {
	var partitions []prospect.Partition
	for _, pc := range r.Partitions {
		for _, t := range pc.CandidateTypes {
			partitions = append(partitions, prospect.Partition{
				SurfaceGUID:   pc.SurfaceGUID,
				CandidateType: prospect.CandidateType(t),
			})
		}
	}
	return partitions
}

// CandidateTypes converts AllowedTypes.
func (i *IngestConfig) CandidateTypes() []prospect.CandidateType {
	types := make([]prospect.CandidateType, len(i.AllowedTypes))
	for j, t := range i.AllowedTypes {
		types[j] = prospect.CandidateType(t)
	}
	return types
}
