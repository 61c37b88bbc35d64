package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "PROSPECTS_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration and applies environment
// variable overrides. Variables follow PROSPECTS_SECTION_FIELD (e.g.,
// PROSPECTS_RETENTION_MAX_AGE_MINUTES) and always take precedence over the
// file. A .env file in the working directory is loaded first when present;
// it never replaces variables already set in the environment.
//
// An empty path skips the file and starts from defaults.
//
// The loading sequence is:
// 1. Load .env (if present)
// 2. Load YAML from file and apply defaults
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Malformed numeric, boolean or duration values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	var errs []FieldError
	env := envReader{errs: &errs}

	// Server overrides
	env.str("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	env.duration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	env.duration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	env.duration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Storage overrides
	env.str("STORAGE_BACKEND", &cfg.Storage.Backend)
	env.str("STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	env.str("STORAGE_SQLITE_DRIVER", &cfg.Storage.SQLite.Driver)
	env.str("STORAGE_REDIS_ADDR", &cfg.Storage.Redis.Addr)
	env.str("STORAGE_REDIS_PASSWORD", &cfg.Storage.Redis.Password)
	env.integer("STORAGE_REDIS_DB", &cfg.Storage.Redis.DB)
	env.str("STORAGE_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	env.str("STORAGE_POSTGRES_HOST", &cfg.Storage.Postgres.Host)
	env.str("STORAGE_POSTGRES_PASSWORD", &cfg.Storage.Postgres.Password)
	env.integer("STORAGE_RETRY_MAX_RETRIES", &cfg.Storage.Retry.MaxRetries)

	// Retention overrides
	env.integer("RETENTION_MAX_BATCH_DELETE", &cfg.Retention.MaxBatchDelete)
	env.integer("RETENTION_MAX_AGE_MINUTES", &cfg.Retention.MaxAgeMinutes)
	env.str("RETENTION_SCHEDULE", &cfg.Retention.Schedule)

	// Ingest overrides
	if val := os.Getenv(EnvPrefix + "INGEST_ALLOWED_TYPES"); val != "" {
		cfg.Ingest.AllowedTypes = splitList(val)
	}

	// Telemetry overrides
	env.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	env.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	env.boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	env.str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

type envReader struct {
	errs *[]FieldError
}

func (r envReader) lookup(name string) (string, bool) {
	val := os.Getenv(EnvPrefix + name)
	return val, val != ""
}

func (r envReader) fail(name, val, kind string) {
	*r.errs = append(*r.errs, FieldError{
		Field:   EnvPrefix + name,
		Message: fmt.Sprintf("invalid %s %q", kind, val),
	})
}

func (r envReader) str(name string, dst *string) {
	if val, ok := r.lookup(name); ok {
		*dst = val
	}
}

func (r envReader) integer(name string, dst *int) {
	val, ok := r.lookup(name)
	if !ok {
		return
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		r.fail(name, val, "integer")
		return
	}
	*dst = i
}

func (r envReader) boolean(name string, dst *bool) {
	val, ok := r.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		r.fail(name, val, "boolean")
		return
	}
	*dst = b
}

func (r envReader) duration(name string, dst *time.Duration) {
	val, ok := r.lookup(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		r.fail(name, val, "duration")
		return
	}
	*dst = d
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
