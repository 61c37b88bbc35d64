package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "retention.schedule").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateIngest(&cfg.Ingest)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", cfg.ReadTimeout},
		{"server.write_timeout", cfg.WriteTimeout},
		{"server.idle_timeout", cfg.IdleTimeout},
		{"server.shutdown_timeout", cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			errs = append(errs, FieldError{Field: d.field, Message: "must not be negative"})
		}
	}

	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.path",
				Message: "sqlite path is required when backend is sqlite",
			})
		}
		if cfg.SQLite.Driver != "sqlite3" && cfg.SQLite.Driver != "sqlite" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite3' or 'sqlite'", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.JournalMode != "wal" && cfg.SQLite.JournalMode != "delete" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.journal_mode",
				Message: fmt.Sprintf("invalid journal mode %q: must be 'wal' or 'delete'", cfg.SQLite.JournalMode),
			})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.max_open_conns",
				Message: "max open connections must be at least 1",
			})
		}
		if cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.max_idle_conns",
				Message: "max idle connections must not exceed max open connections",
			})
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			errs = append(errs, FieldError{
				Field:   "storage.redis.addr",
				Message: "redis address is required when backend is redis",
			})
		}
		if cfg.Redis.DB < 0 {
			errs = append(errs, FieldError{
				Field:   "storage.redis.db",
				Message: "redis db must not be negative",
			})
		}
	case "postgres":
		errs = append(errs, validatePostgres(&cfg.Postgres)...)
	case "":
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: "storage backend is required",
		})
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory', 'sqlite', 'redis', or 'postgres'", cfg.Backend),
		})
	}

	if cfg.Retry.MaxRetries < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.retry.max_retries",
			Message: "max retries must not be negative",
		})
	}
	if cfg.Retry.InitialBackoff < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.retry.initial_backoff",
			Message: "initial backoff must not be negative",
		})
	}
	if cfg.Retry.MaxBackoff < cfg.Retry.InitialBackoff {
		errs = append(errs, FieldError{
			Field:   "storage.retry.max_backoff",
			Message: "max backoff must be greater than or equal to initial backoff",
		})
	}

	return errs
}

func validatePostgres(cfg *PostgresConfig) []FieldError {
	var errs []FieldError

	// A DSN carries everything else.
	if cfg.DSN != "" {
		return nil
	}

	if cfg.Host == "" {
		errs = append(errs, FieldError{
			Field:   "storage.postgres.host",
			Message: "postgres host is required when no dsn is set",
		})
	}
	if cfg.Database == "" {
		errs = append(errs, FieldError{
			Field:   "storage.postgres.database",
			Message: "postgres database is required when no dsn is set",
		})
	}
	if cfg.User == "" {
		errs = append(errs, FieldError{
			Field:   "storage.postgres.user",
			Message: "postgres user is required when no dsn is set",
		})
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, FieldError{
			Field:   "storage.postgres.port",
			Message: fmt.Sprintf("invalid port %d", cfg.Port),
		})
	}

	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[cfg.SSLMode] {
		errs = append(errs, FieldError{
			Field:   "storage.postgres.ssl_mode",
			Message: fmt.Sprintf("invalid ssl mode %q: must be 'disable', 'require', 'verify-ca', or 'verify-full'", cfg.SSLMode),
		})
	}

	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxBatchDelete < 1 {
		errs = append(errs, FieldError{
			Field:   "retention.max_batch_delete",
			Message: "max batch delete must be at least 1",
		})
	}
	if cfg.MaxAgeMinutes < 0 {
		errs = append(errs, FieldError{
			Field:   "retention.max_age_minutes",
			Message: "max age must not be negative",
		})
	}

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "retention.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Schedule, err),
			})
		}
	}

	for i, pc := range cfg.Partitions {
		prefix := fmt.Sprintf("retention.partitions[%d]", i)
		if pc.SurfaceGUID == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".surface_guid",
				Message: "surface guid is required",
			})
		}
		if len(pc.CandidateTypes) == 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".candidate_types",
				Message: "at least one candidate type is required",
			})
		}
		errs = append(errs, validateCandidateTypes(prefix+".candidate_types", pc.CandidateTypes)...)
	}

	return errs
}

func validateIngest(cfg *IngestConfig) []FieldError {
	return validateCandidateTypes("ingest.allowed_types", cfg.AllowedTypes)
}

func validateCandidateTypes(field string, types []string) []FieldError {
	var errs []FieldError
	for i, t := range types {
		if !prospect.CandidateType(t).Valid() {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: fmt.Sprintf("unknown candidate type %q", t),
			})
		}
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}
	for i := 1; i < len(cfg.Metrics.SweepDurationBuckets); i++ {
		if cfg.Metrics.SweepDurationBuckets[i] <= cfg.Metrics.SweepDurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.sweep_duration_buckets",
				Message: "buckets must be strictly increasing",
			})
			break
		}
	}

	// Validate tracing configuration
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	// Validate paths start with /
	if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.liveness_path",
			Message: "liveness path must start with /",
		})
	}
	if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.readiness_path",
			Message: "readiness path must start with /",
		})
	}
	if cfg.Health.CheckTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout must be positive",
		})
	}
	if cfg.Health.CheckTimeout > 60*time.Second {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout exceeds reasonable limit (60s)",
		})
	}

	return errs
}
