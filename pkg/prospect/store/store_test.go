package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/storage"
)

// flakyBackend fails the first n calls of each operation.
type flakyBackend struct {
	*storage.MemoryStorage

	mu        sync.Mutex
	failPuts  int
	failGets  int
	putCalls  int
	getCalls  int
	failError error
}

func (f *flakyBackend) Put(ctx context.Context, record *prospect.CandidateRecord) error {
	f.mu.Lock()
	f.putCalls++
	fail := f.putCalls <= f.failPuts
	f.mu.Unlock()
	if fail {
		return f.failError
	}
	return f.MemoryStorage.Put(ctx, record)
}

func (f *flakyBackend) Get(ctx context.Context, id string) (*prospect.CandidateRecord, error) {
	f.mu.Lock()
	f.getCalls++
	fail := f.getCalls <= f.failGets
	f.mu.Unlock()
	if fail {
		return nil, f.failError
	}
	return f.MemoryStorage.Get(ctx, id)
}

type countingRecorder struct {
	mu      sync.Mutex
	retries map[string]int
}

func (r *countingRecorder) RecordStoreRetry(backend, operation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retries == nil {
		r.retries = make(map[string]int)
	}
	r.retries[backend+"/"+operation]++
}

func fastConfig() *Config {
	return &Config{
		MaxBatchDelete: 25,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Clock:          func() time.Time { return time.Unix(1700000000, 0) },
	}
}

func newTestStore(t *testing.T, backend prospect.Backend) *Store {
	t.Helper()
	s, err := New(backend, fastConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return s
}

func record(id string) *prospect.CandidateRecord {
	return &prospect.CandidateRecord{
		ID:                id,
		CandidateSourceID: "src-" + id,
		SurfaceGUID:       "NEW_TAB_EN_US",
		CandidateType:     prospect.TypeTimeSpent,
		URL:               "https://example.com/" + id,
	}
}

func seed(t *testing.T, s *Store, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("id-%02d", i)
		if err := s.Insert(context.Background(), record(ids[i])); err != nil {
			t.Fatalf("Insert() failed: %v", err)
		}
	}
	return ids
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(storage.NewMemoryStorage(), nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if s.MaxBatchDelete() != DefaultMaxBatchDelete {
		t.Errorf("Expected default max batch delete %d, got %d", DefaultMaxBatchDelete, s.MaxBatchDelete())
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		backend prospect.Backend
		config  *Config
	}{
		{"nil backend", nil, nil},
		{"negative batch", storage.NewMemoryStorage(), &Config{MaxBatchDelete: -1}},
		{"negative retries", storage.NewMemoryStorage(), &Config{MaxRetries: -2}},
		{"inverted backoff", storage.NewMemoryStorage(), &Config{InitialBackoff: time.Second, MaxBackoff: time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.backend, tt.config)
			var vErr *prospect.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}
}

func TestStore_InsertAssignsCreatedAt(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStorage())
	ctx := context.Background()

	r := record("a")
	if err := s.Insert(ctx, r); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if r.CreatedAt != 1700000000 {
		t.Errorf("Expected CreatedAt from clock, got %d", r.CreatedAt)
	}

	explicit := record("b")
	explicit.CreatedAt = 42
	_ = s.Insert(ctx, explicit)
	got, found, err := s.GetByID(ctx, "b")
	if err != nil || !found {
		t.Fatalf("GetByID() = %v, %v, %v", got, found, err)
	}
	if got.CreatedAt != 42 {
		t.Errorf("Expected explicit CreatedAt to be kept, got %d", got.CreatedAt)
	}
}

func TestStore_InsertValidation(t *testing.T) {
	backend := storage.NewMemoryStorage()
	s := newTestStore(t, backend)

	bad := record("a")
	bad.CandidateType = "unknown"
	err := s.Insert(context.Background(), bad)

	var vErr *prospect.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if backend.Size() != 0 {
		t.Error("Invalid record should not be written")
	}
}

func TestStore_InsertIdempotent(t *testing.T) {
	backend := storage.NewMemoryStorage()
	s := newTestStore(t, backend)
	ctx := context.Background()

	_ = s.Insert(ctx, record("a"))
	second := record("a")
	second.Rank = 9
	if err := s.Insert(ctx, second); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	if backend.Size() != 1 {
		t.Errorf("Expected 1 record, got %d", backend.Size())
	}
	got, _, _ := s.GetByID(ctx, "a")
	if got.Rank != 9 {
		t.Errorf("Expected last write to win, got rank %d", got.Rank)
	}
}

func TestStore_InsertRetriesTransientFailure(t *testing.T) {
	backend := &flakyBackend{
		MemoryStorage: storage.NewMemoryStorage(),
		failPuts:      2,
		failError:     errors.New("throttled"),
	}
	s := newTestStore(t, backend)
	recorder := &countingRecorder{}
	s.SetRetryRecorder(recorder)

	if err := s.Insert(context.Background(), record("a")); err != nil {
		t.Fatalf("Insert() should succeed after retries: %v", err)
	}
	if backend.putCalls != 3 {
		t.Errorf("Expected 3 put attempts, got %d", backend.putCalls)
	}
	if recorder.retries["memory/insert"] != 2 {
		t.Errorf("Expected 2 recorded retries, got %v", recorder.retries)
	}
}

func TestStore_NoRetries(t *testing.T) {
	backend := &flakyBackend{
		MemoryStorage: storage.NewMemoryStorage(),
		failPuts:      1,
		failError:     errors.New("throttled"),
	}
	cfg := fastConfig()
	cfg.MaxRetries = NoRetries
	s, err := New(backend, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	err = s.Insert(context.Background(), record("a"))

	var pErr *prospect.PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("Expected PersistenceError, got %v", err)
	}
	if pErr.Attempts != 1 || backend.putCalls != 1 {
		t.Errorf("Expected a single attempt, got %d attempts and %d calls", pErr.Attempts, backend.putCalls)
	}
}

func TestStore_InsertExhaustsRetries(t *testing.T) {
	backend := storage.NewMemoryStorage()
	boom := errors.New("connection refused")
	backend.SetPutError(boom)
	s := newTestStore(t, backend)

	err := s.Insert(context.Background(), record("a"))

	var pErr *prospect.PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("Expected PersistenceError, got %v", err)
	}
	if pErr.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", pErr.Attempts)
	}
	if pErr.Operation != "insert" || pErr.Backend != "memory" {
		t.Errorf("Unexpected error fields: %+v", pErr)
	}
	if !errors.Is(err, boom) {
		t.Error("PersistenceError should wrap the backend error")
	}
}

func TestStore_GetByID(t *testing.T) {
	backend := &flakyBackend{
		MemoryStorage: storage.NewMemoryStorage(),
		failGets:      1,
		failError:     errors.New("timeout"),
	}
	s := newTestStore(t, backend)
	ctx := context.Background()
	_ = s.Insert(ctx, record("a"))

	got, found, err := s.GetByID(ctx, "a")
	if err != nil || !found || got.ID != "a" {
		t.Fatalf("GetByID() = %v, %v, %v", got, found, err)
	}

	got, found, err = s.GetByID(ctx, "missing")
	if err != nil {
		t.Fatalf("Not found should not be an error: %v", err)
	}
	if found || got != nil {
		t.Errorf("Expected not found, got %v, %v", got, found)
	}

	if _, _, err := s.GetByID(ctx, ""); err == nil {
		t.Error("Expected ValidationError for empty id")
	}
}

func TestStore_DeleteByIDs(t *testing.T) {
	backend := storage.NewMemoryStorage()
	s := newTestStore(t, backend)
	ids := seed(t, s, 5)

	if err := s.DeleteByIDs(context.Background(), ids[:3]); err != nil {
		t.Fatalf("DeleteByIDs() failed: %v", err)
	}
	if backend.Size() != 2 {
		t.Errorf("Expected 2 records left, got %d", backend.Size())
	}
}

func TestStore_DeleteByIDsEmpty(t *testing.T) {
	backend := storage.NewMemoryStorage()
	s := newTestStore(t, backend)

	err := s.DeleteByIDs(context.Background(), nil)
	var vErr *prospect.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if len(backend.DeleteCalls()) != 0 {
		t.Error("Expected no backend calls")
	}
}

func TestStore_DeleteByIDsBatchTooLarge(t *testing.T) {
	backend := storage.NewMemoryStorage()
	s := newTestStore(t, backend)
	ids := seed(t, s, 26)

	err := s.DeleteByIDs(context.Background(), ids)

	var tooLarge *prospect.BatchTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("Expected BatchTooLargeError, got %v", err)
	}
	if tooLarge.Requested != 26 || tooLarge.Max != 25 {
		t.Errorf("Unexpected error fields: %+v", tooLarge)
	}
	if len(backend.DeleteCalls()) != 0 {
		t.Errorf("Expected no backend calls, got %d", len(backend.DeleteCalls()))
	}
	for _, id := range ids {
		if _, found, _ := s.GetByID(context.Background(), id); !found {
			t.Errorf("Record %s should not have been deleted", id)
		}
	}
}

func TestStore_DeleteByIDsRetriesUnprocessedSubset(t *testing.T) {
	backend := storage.NewMemoryStorage()
	s := newTestStore(t, backend)
	ids := seed(t, s, 5)

	calls := 0
	backend.SetDeleteHook(func(batch []string) ([]string, error) {
		calls++
		if calls == 1 {
			return []string{"id-03", "id-04"}, nil
		}
		return nil, nil
	})

	if err := s.DeleteByIDs(context.Background(), ids); err != nil {
		t.Fatalf("DeleteByIDs() failed: %v", err)
	}

	recorded := backend.DeleteCalls()
	if len(recorded) != 2 {
		t.Fatalf("Expected 2 backend calls, got %d", len(recorded))
	}
	if len(recorded[1]) != 2 || recorded[1][0] != "id-03" || recorded[1][1] != "id-04" {
		t.Errorf("Expected retry of exactly the unprocessed subset, got %v", recorded[1])
	}
	if backend.Size() != 0 {
		t.Errorf("Expected all records deleted, got %d", backend.Size())
	}
}

func TestStore_DeleteByIDsPartialDeleteError(t *testing.T) {
	backend := storage.NewMemoryStorage()
	s := newTestStore(t, backend)
	ids := seed(t, s, 4)

	backend.SetDeleteHook(func(batch []string) ([]string, error) {
		for _, id := range batch {
			if id == "id-02" {
				return []string{"id-02"}, nil
			}
		}
		return nil, nil
	})

	err := s.DeleteByIDs(context.Background(), ids)

	var partial *prospect.PartialDeleteError
	if !errors.As(err, &partial) {
		t.Fatalf("Expected PartialDeleteError, got %v", err)
	}
	if len(partial.Unprocessed) != 1 || partial.Unprocessed[0] != "id-02" {
		t.Errorf("Expected [id-02] unprocessed, got %v", partial.Unprocessed)
	}
	if partial.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", partial.Attempts)
	}
	if backend.Size() != 1 {
		t.Errorf("Expected only the unprocessed record to remain, got %d", backend.Size())
	}
}

func TestStore_DeleteByIDsPersistenceError(t *testing.T) {
	backend := storage.NewMemoryStorage()
	s := newTestStore(t, backend)
	ids := seed(t, s, 2)

	boom := errors.New("service unavailable")
	backend.SetDeleteHook(func(batch []string) ([]string, error) {
		return nil, boom
	})

	err := s.DeleteByIDs(context.Background(), ids)

	var pErr *prospect.PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("Expected PersistenceError, got %v", err)
	}
	if pErr.Operation != "delete" || pErr.Attempts != 3 {
		t.Errorf("Unexpected error fields: %+v", pErr)
	}
	if len(backend.DeleteCalls()) != 3 {
		t.Errorf("Expected 3 backend calls, got %d", len(backend.DeleteCalls()))
	}
}

func TestStore_DeleteByIDsCancelled(t *testing.T) {
	backend := storage.NewMemoryStorage()
	s := newTestStore(t, backend)
	ids := seed(t, s, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.DeleteByIDs(ctx, ids)
	var pErr *prospect.PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("Expected PersistenceError, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected wrapped context.Canceled, got %v", err)
	}
}

func TestStore_QueryPartition(t *testing.T) {
	backend := storage.NewMemoryStorage()
	s := newTestStore(t, backend)
	seed(t, s, 3)

	records, err := s.QueryPartition(context.Background(), prospect.Partition{
		SurfaceGUID:   "NEW_TAB_EN_US",
		CandidateType: prospect.TypeTimeSpent,
	})
	if err != nil {
		t.Fatalf("QueryPartition() failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Expected 3 records, got %d", len(records))
	}

	backend.SetQueryError(errors.New("index unavailable"))
	_, err = s.QueryPartition(context.Background(), prospect.Partition{
		SurfaceGUID:   "NEW_TAB_EN_US",
		CandidateType: prospect.TypeTimeSpent,
	})
	var pErr *prospect.PersistenceError
	if !errors.As(err, &pErr) || pErr.Operation != "query" {
		t.Errorf("Expected query PersistenceError, got %v", err)
	}
}
