package storage

import (
	"context"
	"sync"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// DeleteHook intercepts a BatchDelete call on the memory backend. It returns the
// IDs to leave unprocessed, or an error to fail the whole call. IDs it does not
// return are deleted normally.
type DeleteHook func(ids []string) (unprocessed []string, err error)

// MemoryStorage implements prospect.Backend using in-memory maps.
// It is intended for tests and local runs; it keeps every delete call it
// receives and supports fault injection.
type MemoryStorage struct {
	records map[string]*prospect.CandidateRecord
	index   map[prospect.Partition]map[string]struct{}
	mu      sync.RWMutex

	deleteHook  DeleteHook
	putErr      error
	queryErr    error
	deleteCalls [][]string
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*prospect.CandidateRecord),
		index:   make(map[prospect.Partition]map[string]struct{}),
	}
}

// Name returns "memory".
func (s *MemoryStorage) Name() string { return "memory" }

// Put stores a copy of the record, replacing any record with the same ID.
func (s *MemoryStorage) Put(ctx context.Context, record *prospect.CandidateRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.putErr != nil {
		return s.putErr
	}

	if old, ok := s.records[record.ID]; ok {
		s.unindex(old)
	}

	// Create a copy to avoid mutation
	recordCopy := *record
	s.records[record.ID] = &recordCopy

	p := recordCopy.Partition()
	if s.index[p] == nil {
		s.index[p] = make(map[string]struct{})
	}
	s.index[p][record.ID] = struct{}{}

	return nil
}

// Get returns a copy of the record, or nil if absent.
func (s *MemoryStorage) Get(ctx context.Context, id string) (*prospect.CandidateRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, nil
	}

	recordCopy := *record
	return &recordCopy, nil
}

// QueryPartition returns copies of every record in the partition.
func (s *MemoryStorage) QueryPartition(ctx context.Context, partition prospect.Partition) ([]*prospect.CandidateRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.queryErr != nil {
		return nil, s.queryErr
	}

	ids := s.index[partition]
	results := make([]*prospect.CandidateRecord, 0, len(ids))
	for id := range ids {
		recordCopy := *s.records[id]
		results = append(results, &recordCopy)
	}

	return results, nil
}

// BatchDelete removes the given IDs, consulting the delete hook first.
func (s *MemoryStorage) BatchDelete(ctx context.Context, ids []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	call := make([]string, len(ids))
	copy(call, ids)
	s.deleteCalls = append(s.deleteCalls, call)

	var unprocessed []string
	if s.deleteHook != nil {
		var err error
		unprocessed, err = s.deleteHook(call)
		if err != nil {
			return nil, err
		}
	}

	skip := make(map[string]struct{}, len(unprocessed))
	for _, id := range unprocessed {
		skip[id] = struct{}{}
	}

	for _, id := range ids {
		if _, ok := skip[id]; ok {
			continue
		}
		if record, ok := s.records[id]; ok {
			s.unindex(record)
			delete(s.records, id)
		}
	}

	return unprocessed, nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close releases resources held by the storage backend.
func (s *MemoryStorage) Close() error {
	s.Clear()
	return nil
}

// unindex removes a record from the partition index. Callers hold s.mu.
func (s *MemoryStorage) unindex(record *prospect.CandidateRecord) {
	p := record.Partition()
	delete(s.index[p], record.ID)
	if len(s.index[p]) == 0 {
		delete(s.index, p)
	}
}

// SetDeleteHook installs a hook consulted by every BatchDelete call (for testing).
func (s *MemoryStorage) SetDeleteHook(hook DeleteHook) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteHook = hook
}

// SetPutError makes every Put fail with err until reset with nil (for testing).
func (s *MemoryStorage) SetPutError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putErr = err
}

// SetQueryError makes every QueryPartition fail with err until reset with nil
// (for testing).
func (s *MemoryStorage) SetQueryError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queryErr = err
}

// DeleteCalls returns the ID lists of every BatchDelete call received so far.
func (s *MemoryStorage) DeleteCalls() [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calls := make([][]string, len(s.deleteCalls))
	copy(calls, s.deleteCalls)
	return calls
}

// ResetDeleteCalls forgets recorded delete calls (for testing).
func (s *MemoryStorage) ResetDeleteCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteCalls = nil
}

// Clear removes all records from storage (for testing).
func (s *MemoryStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*prospect.CandidateRecord)
	s.index = make(map[prospect.Partition]map[string]struct{})
}

// Size returns the number of records in storage.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}
