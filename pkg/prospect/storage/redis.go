package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// RedisConfig contains configuration for the Redis storage backend.
type RedisConfig struct {
	// Addr is the Redis server address, e.g. "127.0.0.1:6379".
	Addr string

	// Password is the optional AUTH password.
	Password string

	// DB is the logical database number.
	DB int

	// KeyPrefix namespaces every key written by the backend.
	// Default: "prospects"
	KeyPrefix string
}

// RedisStorage implements prospect.Backend on Redis. Each record is a JSON
// string under <prefix>:record:<id>; each partition is a set of IDs under
// <prefix>:partition:<surface>:<type>.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	owned  bool
	logger *slog.Logger
}

// NewRedisStorage connects to Redis using cfg.
func NewRedisStorage(cfg *RedisConfig) (*RedisStorage, error) {
	if cfg == nil || cfg.Addr == "" {
		return nil, prospect.NewValidationError("redis.addr", "redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	s := NewRedisStorageWithClient(client, cfg.KeyPrefix)
	s.owned = true

	s.logger.Info("Redis storage initialized", "addr", cfg.Addr, "db", cfg.DB, "key_prefix", s.prefix)
	return s, nil
}

// NewRedisStorageWithClient wraps an existing client. The caller keeps
// ownership of the client; Close does not close it.
func NewRedisStorageWithClient(client redis.UniversalClient, keyPrefix string) *RedisStorage {
	if keyPrefix == "" {
		keyPrefix = "prospects"
	}
	return &RedisStorage{
		client: client,
		prefix: keyPrefix,
		logger: slog.Default().With("component", "prospect.storage.redis"),
	}
}

// Name returns "redis".
func (s *RedisStorage) Name() string { return "redis" }

// RecordKey returns the key holding a record.
func (s *RedisStorage) RecordKey(id string) string {
	return fmt.Sprintf("%s:record:%s", s.prefix, id)
}

// PartitionKey returns the key of a partition's ID set.
func (s *RedisStorage) PartitionKey(p prospect.Partition) string {
	return fmt.Sprintf("%s:partition:%s:%s", s.prefix, p.SurfaceGUID, p.CandidateType)
}

// Put writes the record and adds it to its partition set. If a record with the
// same ID existed in another partition it is removed from that set.
func (s *RedisStorage) Put(ctx context.Context, record *prospect.CandidateRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("redis put %s: marshal: %w", record.ID, err)
	}

	old, err := s.Get(ctx, record.ID)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.RecordKey(record.ID), data, 0)
		if old != nil && old.Partition() != record.Partition() {
			pipe.SRem(ctx, s.PartitionKey(old.Partition()), record.ID)
		}
		pipe.SAdd(ctx, s.PartitionKey(record.Partition()), record.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", record.ID, err)
	}
	return nil
}

// Get returns the record with the given ID, or nil if absent.
func (s *RedisStorage) Get(ctx context.Context, id string) (*prospect.CandidateRecord, error) {
	data, err := s.client.Get(ctx, s.RecordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", id, err)
	}

	var record prospect.CandidateRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("redis get %s: unmarshal: %w", id, err)
	}
	return &record, nil
}

// QueryPartition reads the partition set and fetches its records. Set members
// whose record no longer exists are skipped.
func (s *RedisStorage) QueryPartition(ctx context.Context, partition prospect.Partition) ([]*prospect.CandidateRecord, error) {
	ids, err := s.client.SMembers(ctx, s.PartitionKey(partition)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis query partition %s: %w", partition, err)
	}
	if len(ids) == 0 {
		return []*prospect.CandidateRecord{}, nil
	}

	records, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("redis query partition %s: %w", partition, err)
	}

	results := make([]*prospect.CandidateRecord, 0, len(records))
	for _, record := range records {
		if record != nil {
			results = append(results, record)
		}
	}
	return results, nil
}

// BatchDelete deletes the records and their partition memberships in one
// pipeline. IDs whose DEL command failed are returned as unprocessed.
func (s *RedisStorage) BatchDelete(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	records, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("redis delete: %w", err)
	}

	dels := make([]*redis.IntCmd, len(ids))
	_, pipeErr := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			dels[i] = pipe.Del(ctx, s.RecordKey(id))
			if records[i] != nil {
				pipe.SRem(ctx, s.PartitionKey(records[i].Partition()), id)
			}
		}
		return nil
	})

	var unprocessed []string
	for i, cmd := range dels {
		if cmd == nil || cmd.Err() != nil {
			unprocessed = append(unprocessed, ids[i])
		}
	}

	if len(unprocessed) == len(ids) && pipeErr != nil {
		return nil, fmt.Errorf("redis delete: %w", pipeErr)
	}
	if len(unprocessed) > 0 {
		s.logger.Warn("redis delete left ids unprocessed",
			"requested", len(ids),
			"unprocessed", len(unprocessed),
			"error", pipeErr,
		)
	}

	return unprocessed, nil
}

// fetch loads the records for ids with MGET; absent records are nil.
func (s *RedisStorage) fetch(ctx context.Context, ids []string) ([]*prospect.CandidateRecord, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.RecordKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*prospect.CandidateRecord, len(ids))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var record prospect.CandidateRecord
		if err := json.Unmarshal([]byte(str), &record); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", ids[i], err)
		}
		records[i] = &record
	}
	return records, nil
}

// Ping checks the connection.
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client if the backend created it.
func (s *RedisStorage) Close() error {
	if !s.owned {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return prospect.NewPersistenceError("redis", "close", 1, err)
	}
	s.logger.Info("Redis storage closed")
	return nil
}
