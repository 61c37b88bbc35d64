package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Pocket/content-monorepo-sub003/pkg/config"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/ingest"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/retention"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/storage"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/store"
	"github.com/Pocket/content-monorepo-sub003/pkg/telemetry/metrics"
)

// app is the set of components shared by every command.
type app struct {
	cfg       *config.Config
	backend   prospect.Backend
	store     *store.Store
	sweeper   *retention.Sweeper
	processor *ingest.Processor
	metrics   *metrics.Collector
}

// storeConfig maps the loaded config onto store.Config. Defaults are already
// applied, so a zero retry count here was set explicitly and disables retries.
func storeConfig(cfg *config.Config) *store.Config {
	retries := cfg.Storage.Retry.MaxRetries
	if retries == 0 {
		retries = store.NoRetries
	}
	return &store.Config{
		MaxBatchDelete: cfg.Retention.MaxBatchDelete,
		MaxRetries:     retries,
		InitialBackoff: cfg.Storage.Retry.InitialBackoff,
		MaxBackoff:     cfg.Storage.Retry.MaxBackoff,
	}
}

// newApp opens the configured backend and wires the store, sweeper and
// processor to it, with every component reporting to one metrics collector.
func newApp(cfg *config.Config, registry *prometheus.Registry) (*app, error) {
	backend, err := openBackend(&cfg.Storage)
	if err != nil {
		return nil, err
	}

	st, err := store.New(backend, storeConfig(cfg))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, registry)
	st.SetRetryRecorder(collector)

	sweeper := retention.NewSweeper(st)
	sweeper.SetRecorder(collector)

	processor := ingest.NewProcessor(st, sweeper, &ingest.Config{
		MaxAgeMinutes: cfg.Retention.MaxAgeMinutes,
		AllowedTypes:  cfg.Ingest.CandidateTypes(),
	})
	processor.SetRecorder(collector)

	return &app{
		cfg:       cfg,
		backend:   backend,
		store:     st,
		sweeper:   sweeper,
		processor: processor,
		metrics:   collector,
	}, nil
}

// retentionConfig builds the scheduler configuration from cfg.
func retentionConfig(cfg *config.Config) *retention.Config {
	return &retention.Config{
		Schedule:      cfg.Retention.Schedule,
		MaxAgeMinutes: cfg.Retention.MaxAgeMinutes,
		Partitions:    cfg.Retention.ExpandPartitions(),
	}
}

// Close releases the backend.
func (a *app) Close() error {
	if err := a.backend.Close(); err != nil {
		slog.Warn("failed to close storage backend", "backend", a.backend.Name(), "error", err)
		return err
	}
	return nil
}

// openBackend creates the storage backend named by cfg.Backend.
func openBackend(cfg *config.StorageConfig) (prospect.Backend, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		b, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			Driver:       cfg.SQLite.Driver,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.JournalMode == "wal",
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case "redis":
		b, err := storage.NewRedisStorage(&storage.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case "postgres":
		b, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			DSN:         cfg.Postgres.DSN,
			Host:        cfg.Postgres.Host,
			Port:        cfg.Postgres.Port,
			Database:    cfg.Postgres.Database,
			User:        cfg.Postgres.User,
			Password:    cfg.Postgres.Password,
			SSLMode:     cfg.Postgres.SSLMode,
			AutoMigrate: cfg.Postgres.AutoMigrate,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, config.ValidationError{Errors: []config.FieldError{{
			Field:   "storage.backend",
			Message: fmt.Sprintf("unsupported backend %q", cfg.Backend),
		}}}
	}
}
