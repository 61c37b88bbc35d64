// Package store provides the candidate Store: point CRUD primitives over a
// prospect.Backend with a bulk-delete ceiling and bounded retries.
//
// The Store holds no retention logic. It normalizes backend failures into the
// prospect error taxonomy:
//
//   - ValidationError for bad input, never retried
//   - BatchTooLargeError when a delete asks for more than MaxBatchDelete IDs,
//     checked before any backend call
//   - PersistenceError when a backend call keeps failing past the retry budget
//   - PartialDeleteError when the backend keeps leaving IDs unprocessed
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// DefaultMaxBatchDelete is the per-call item ceiling of common key/value bulk
// delete APIs.
const DefaultMaxBatchDelete = 25

// NoRetries disables retries when set as Config.MaxRetries. Zero means the
// default.
const NoRetries = -1

// Config configures a Store.
type Config struct {
	// MaxBatchDelete is the maximum number of IDs accepted by one DeleteByIDs call.
	// Default: 25
	MaxBatchDelete int

	// MaxRetries is the number of retries after the first attempt. Use
	// NoRetries for a single attempt.
	// Default: 3
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	// Default: 50ms
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries.
	// Default: 2s
	MaxBackoff time.Duration

	// Clock supplies insertion timestamps.
	// Default: time.Now
	Clock func() time.Time
}

// DefaultConfig returns the default Store configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxBatchDelete: DefaultMaxBatchDelete,
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Clock:          time.Now,
	}
}

// RetryRecorder receives one call per retried backend operation.
// metrics.Collector implements it.
type RetryRecorder interface {
	RecordStoreRetry(backend, operation string)
}

// Store wraps a backend handle constructed once at startup.
type Store struct {
	backend  prospect.Backend
	config   Config
	recorder RetryRecorder
	logger   *slog.Logger
}

// New creates a Store over backend. Zero config fields take their defaults.
func New(backend prospect.Backend, config *Config) (*Store, error) {
	if backend == nil {
		return nil, prospect.NewValidationError("backend", "backend is required")
	}

	cfg := *DefaultConfig()
	if config != nil {
		if config.MaxBatchDelete != 0 {
			cfg.MaxBatchDelete = config.MaxBatchDelete
		}
		switch config.MaxRetries {
		case 0:
		case NoRetries:
			cfg.MaxRetries = 0
		default:
			cfg.MaxRetries = config.MaxRetries
		}
		if config.InitialBackoff != 0 {
			cfg.InitialBackoff = config.InitialBackoff
		}
		if config.MaxBackoff != 0 {
			cfg.MaxBackoff = config.MaxBackoff
		}
		if config.Clock != nil {
			cfg.Clock = config.Clock
		}
	}

	switch {
	case cfg.MaxBatchDelete < 1:
		return nil, prospect.NewValidationError("max_batch_delete",
			fmt.Sprintf("must be at least 1, got %d", cfg.MaxBatchDelete))
	case cfg.MaxRetries < 0:
		return nil, prospect.NewValidationError("max_retries",
			fmt.Sprintf("must be non-negative, got %d", cfg.MaxRetries))
	case cfg.InitialBackoff < 0 || cfg.MaxBackoff < cfg.InitialBackoff:
		return nil, prospect.NewValidationError("backoff",
			fmt.Sprintf("invalid backoff range %s..%s", cfg.InitialBackoff, cfg.MaxBackoff))
	}

	return &Store{
		backend: backend,
		config:  cfg,
		logger:  slog.Default().With("component", "prospect.store", "backend", backend.Name()),
	}, nil
}

// SetRetryRecorder installs a recorder for retried operations.
func (s *Store) SetRetryRecorder(r RetryRecorder) {
	s.recorder = r
}

// MaxBatchDelete returns the configured per-call delete ceiling.
func (s *Store) MaxBatchDelete() int {
	return s.config.MaxBatchDelete
}

// Backend returns the underlying backend.
func (s *Store) Backend() prospect.Backend {
	return s.backend
}

// Ping checks backend connectivity without retrying.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Insert writes record, overwriting any record with the same ID. A zero
// CreatedAt is set from the clock on record itself before the write.
func (s *Store) Insert(ctx context.Context, record *prospect.CandidateRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = s.config.Clock().Unix()
	}

	return s.do(ctx, "insert", func(ctx context.Context) error {
		return s.backend.Put(ctx, record)
	})
}

// GetByID returns the record with the given ID. A missing record is reported
// as found == false with a nil error.
func (s *Store) GetByID(ctx context.Context, id string) (*prospect.CandidateRecord, bool, error) {
	if id == "" {
		return nil, false, prospect.NewValidationError("id", "id is required")
	}

	var record *prospect.CandidateRecord
	err := s.do(ctx, "get", func(ctx context.Context) error {
		var err error
		record, err = s.backend.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return record, record != nil, nil
}

// QueryPartition returns every record in the partition.
func (s *Store) QueryPartition(ctx context.Context, partition prospect.Partition) ([]*prospect.CandidateRecord, error) {
	if err := partition.Validate(); err != nil {
		return nil, err
	}

	var records []*prospect.CandidateRecord
	err := s.do(ctx, "query", func(ctx context.Context) error {
		var err error
		records, err = s.backend.QueryPartition(ctx, partition)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// errUnprocessed marks an attempt where the backend left IDs behind.
var errUnprocessed = errors.New("backend left ids unprocessed")

// DeleteByIDs deletes exactly the given IDs. Calls with more than
// MaxBatchDelete IDs fail with BatchTooLargeError before touching the backend.
// IDs the backend reports as unprocessed are retried on their own; if some
// remain once the retry budget is spent the call fails with
// PartialDeleteError naming them.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return prospect.NewValidationError("ids", "at least one id is required")
	}
	if len(ids) > s.config.MaxBatchDelete {
		return prospect.NewBatchTooLargeError(len(ids), s.config.MaxBatchDelete)
	}

	pending := make([]string, len(ids))
	copy(pending, ids)

	attempts := 0
	partial := false
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		unprocessed, err := s.backend.BatchDelete(ctx, pending)
		if err != nil {
			partial = false
			if ctx.Err() != nil {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		if len(unprocessed) == 0 {
			pending = nil
			return struct{}{}, nil
		}
		partial = true
		pending = unprocessed
		return struct{}{}, errUnprocessed
	}, s.retryOptions("delete")...)

	if err == nil {
		if attempts > 1 {
			s.logger.Debug("delete completed after retries", "ids", len(ids), "attempts", attempts)
		}
		return nil
	}

	if partial {
		s.logger.Warn("delete left ids unprocessed",
			"requested", len(ids),
			"unprocessed", len(pending),
			"attempts", attempts,
		)
		return prospect.NewPartialDeleteError(pending, attempts)
	}

	s.logger.Error("delete failed", "ids", len(ids), "attempts", attempts, "error", err)
	return prospect.NewPersistenceError(s.backend.Name(), "delete", attempts, err)
}

// do runs fn with the retry policy and wraps exhaustion in a PersistenceError.
func (s *Store) do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := fn(ctx)
		if err != nil && ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, s.retryOptions(operation)...)
	if err != nil {
		s.logger.Error("backend operation failed",
			"operation", operation,
			"attempts", attempts,
			"error", err,
		)
		return prospect.NewPersistenceError(s.backend.Name(), operation, attempts, err)
	}
	return nil
}

func (s *Store) retryOptions(operation string) []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.InitialBackoff
	b.MaxInterval = s.config.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.2

	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.config.MaxRetries + 1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Debug("retrying backend operation",
				"operation", operation,
				"backoff", next,
				"error", err,
			)
			if s.recorder != nil {
				s.recorder.RecordStoreRetry(s.backend.Name(), operation)
			}
		}),
	}
}
