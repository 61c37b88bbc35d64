package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/storage"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/store"
)

const (
	surfaceEN = "NEW_TAB_EN_US"
	surfaceDE = "NEW_TAB_DE_DE"
	maxAge    = 60
)

var now = time.Unix(1700000000, 0)

// staleAt and freshAt are creation times on either side of the cutoff.
var (
	staleAt = now.Add(-2 * time.Hour).Unix()
	freshAt = now.Add(-10 * time.Minute).Unix()
)

func newTestStore(t *testing.T) (*store.Store, *storage.MemoryStorage) {
	t.Helper()

	backend := storage.NewMemoryStorage()
	st, err := store.New(backend, &store.Config{
		MaxBatchDelete: 25,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Clock:          func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("store.New() failed: %v", err)
	}
	return st, backend
}

func insert(t *testing.T, st *store.Store, id, surface string, candidateType prospect.CandidateType, createdAt int64) {
	t.Helper()

	err := st.Insert(context.Background(), &prospect.CandidateRecord{
		ID:                id,
		CandidateSourceID: "src-" + id,
		SurfaceGUID:       surface,
		CandidateType:     candidateType,
		URL:               "https://example.com/" + id,
		CreatedAt:         createdAt,
	})
	if err != nil {
		t.Fatalf("Insert(%s) failed: %v", id, err)
	}
}

func insertN(t *testing.T, st *store.Store, prefix, surface string, candidateType prospect.CandidateType, createdAt int64, n int) []string {
	t.Helper()

	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("%s-%02d", prefix, i)
		insert(t, st, ids[i], surface, candidateType, createdAt)
	}
	return ids
}

func ids(records []*prospect.CandidateRecord) map[string]bool {
	set := make(map[string]bool, len(records))
	for _, r := range records {
		set[r.ID] = true
	}
	return set
}

func partitionSize(t *testing.T, st *store.Store, surface string, candidateType prospect.CandidateType) int {
	t.Helper()

	records, err := st.QueryPartition(context.Background(), prospect.Partition{SurfaceGUID: surface, CandidateType: candidateType})
	if err != nil {
		t.Fatalf("QueryPartition() failed: %v", err)
	}
	return len(records)
}

func TestFindStale_AlternatingRecords(t *testing.T) {
	st, _ := newTestStore(t)

	wantStale := make(map[string]bool)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("rec-%02d", i)
		if i%2 == 0 {
			insert(t, st, id, surfaceEN, prospect.TypeTimeSpent, staleAt)
			wantStale[id] = true
		} else {
			insert(t, st, id, surfaceEN, prospect.TypeTimeSpent, freshAt)
		}
	}

	stale, err := NewQuery(st).FindStale(context.Background(), surfaceEN, prospect.TypeTimeSpent, now, maxAge)
	if err != nil {
		t.Fatalf("FindStale() failed: %v", err)
	}

	if len(stale) != 6 {
		t.Fatalf("Expected 6 stale records, got %d", len(stale))
	}
	for id := range ids(stale) {
		if !wantStale[id] {
			t.Errorf("Fresh record %s returned as stale", id)
		}
	}
}

func TestFindStale_Boundary(t *testing.T) {
	st, _ := newTestStore(t)
	cutoff := Cutoff(now, maxAge)

	insert(t, st, "at-cutoff", surfaceEN, prospect.TypeTimeSpent, cutoff)
	insert(t, st, "after-cutoff", surfaceEN, prospect.TypeTimeSpent, cutoff+1)

	stale, err := NewQuery(st).FindStale(context.Background(), surfaceEN, prospect.TypeTimeSpent, now, maxAge)
	if err != nil {
		t.Fatalf("FindStale() failed: %v", err)
	}
	got := ids(stale)
	if !got["at-cutoff"] || got["after-cutoff"] || len(got) != 1 {
		t.Errorf("Expected only the record at the cutoff, got %v", got)
	}
}

func TestFindStale_PartitionIsolation(t *testing.T) {
	st, _ := newTestStore(t)

	insertN(t, st, "en-ts", surfaceEN, prospect.TypeTimeSpent, staleAt, 3)
	insertN(t, st, "en-sn", surfaceEN, prospect.TypeSyndicatedNew, staleAt, 3)
	insertN(t, st, "de-ts", surfaceDE, prospect.TypeTimeSpent, staleAt, 3)

	stale, err := NewQuery(st).FindStale(context.Background(), surfaceEN, prospect.TypeTimeSpent, now, maxAge)
	if err != nil {
		t.Fatalf("FindStale() failed: %v", err)
	}
	if len(stale) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(stale))
	}
	for _, r := range stale {
		if r.SurfaceGUID != surfaceEN || r.CandidateType != prospect.TypeTimeSpent {
			t.Errorf("Record %s leaked from partition %s", r.ID, r.Partition())
		}
	}
}

func TestFindStale_EmptyPartition(t *testing.T) {
	st, _ := newTestStore(t)

	stale, err := NewQuery(st).FindStale(context.Background(), surfaceEN, prospect.TypeGlobal, now, maxAge)
	if err != nil {
		t.Fatalf("Empty partition should not be an error: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("Expected no records, got %d", len(stale))
	}
}

func TestFindStale_InvalidInput(t *testing.T) {
	st, _ := newTestStore(t)
	q := NewQuery(st)

	tests := []struct {
		name          string
		surface       string
		candidateType prospect.CandidateType
		maxAge        int
	}{
		{"negative max age", surfaceEN, prospect.TypeTimeSpent, -1},
		{"empty surface", "", prospect.TypeTimeSpent, maxAge},
		{"unknown type", surfaceEN, "bogus", maxAge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.FindStale(context.Background(), tt.surface, tt.candidateType, now, tt.maxAge)
			var vErr *prospect.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}
}

func TestEvictAll_Empty(t *testing.T) {
	st, backend := newTestStore(t)

	result := NewEvictor(st).EvictAll(context.Background(), nil)
	if result.DeletedCount != 0 || result.Chunks != 0 || len(result.FailedIDs) != 0 {
		t.Errorf("Expected empty result, got %+v", result)
	}
	if len(backend.DeleteCalls()) != 0 {
		t.Errorf("Expected no delete calls, got %d", len(backend.DeleteCalls()))
	}
}

func TestEvictAll_ChunkSizes(t *testing.T) {
	st, backend := newTestStore(t)
	all := insertN(t, st, "rec", surfaceEN, prospect.TypeTimeSpent, staleAt, 60)

	result := NewEvictor(st).EvictAll(context.Background(), all)

	if result.DeletedCount != 60 || result.Chunks != 3 {
		t.Errorf("Unexpected result: %+v", result)
	}
	calls := backend.DeleteCalls()
	wantSizes := []int{25, 25, 10}
	if len(calls) != len(wantSizes) {
		t.Fatalf("Expected %d calls, got %d", len(wantSizes), len(calls))
	}
	for i, call := range calls {
		if len(call) != wantSizes[i] {
			t.Errorf("Call %d: expected %d ids, got %d", i, wantSizes[i], len(call))
		}
	}
	// Discovery order is preserved across chunks
	if calls[0][0] != all[0] || calls[2][9] != all[59] {
		t.Errorf("Chunks not in input order")
	}
}

func TestEvictAll_FailureIsolation(t *testing.T) {
	st, backend := newTestStore(t)
	all := insertN(t, st, "rec", surfaceEN, prospect.TypeTimeSpent, staleAt, 52)

	// Fail every call that includes the first id of the second chunk
	poisoned := all[25]
	backend.SetDeleteHook(func(batch []string) ([]string, error) {
		for _, id := range batch {
			if id == poisoned {
				return nil, errors.New("throttled")
			}
		}
		return nil, nil
	})

	result := NewEvictor(st).EvictAll(context.Background(), all)

	if result.DeletedCount != 27 {
		t.Errorf("Expected 27 deleted, got %d", result.DeletedCount)
	}
	if len(result.FailedIDs) != 25 {
		t.Fatalf("Expected the 25 ids of the failed chunk, got %d", len(result.FailedIDs))
	}
	for i, id := range result.FailedIDs {
		if id != all[25+i] {
			t.Errorf("FailedIDs[%d] = %s, want %s", i, id, all[25+i])
		}
	}
	if result.Chunks != 3 {
		t.Errorf("Expected all 3 chunks attempted, got %d", result.Chunks)
	}
	if backend.Size() != 25 {
		t.Errorf("Expected failed chunk's records to remain, got %d", backend.Size())
	}
}

func TestEvictAll_PartialDelete(t *testing.T) {
	st, backend := newTestStore(t)
	all := insertN(t, st, "rec", surfaceEN, prospect.TypeTimeSpent, staleAt, 10)

	stuck := all[4]
	backend.SetDeleteHook(func(batch []string) ([]string, error) {
		for _, id := range batch {
			if id == stuck {
				return []string{stuck}, nil
			}
		}
		return nil, nil
	})

	result := NewEvictor(st).EvictAll(context.Background(), all)

	if result.DeletedCount != 9 {
		t.Errorf("Expected 9 deleted, got %d", result.DeletedCount)
	}
	if len(result.FailedIDs) != 1 || result.FailedIDs[0] != stuck {
		t.Errorf("Expected only %s failed, got %v", stuck, result.FailedIDs)
	}
}

func TestSweep_NothingStale(t *testing.T) {
	st, backend := newTestStore(t)
	insertN(t, st, "fresh", surfaceEN, prospect.TypeTimeSpent, freshAt, 5)

	result, err := NewSweeper(st).Sweep(context.Background(), surfaceEN, prospect.TypeTimeSpent, now, maxAge)
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if result.DeletedCount != 0 || result.Chunks != 0 {
		t.Errorf("Expected empty result, got %+v", result)
	}
	if len(backend.DeleteCalls()) != 0 {
		t.Errorf("Expected no delete calls, got %d", len(backend.DeleteCalls()))
	}
}

func TestSweep_ChunkedCompleteness(t *testing.T) {
	st, backend := newTestStore(t)
	n := 2*st.MaxBatchDelete() + 2
	insertN(t, st, "stale", surfaceEN, prospect.TypeTimeSpent, staleAt, n)

	result, err := NewSweeper(st).Sweep(context.Background(), surfaceEN, prospect.TypeTimeSpent, now, maxAge)
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}

	if result.DeletedCount != 52 || len(result.FailedIDs) != 0 {
		t.Errorf("Unexpected result: %+v", result)
	}

	calls := backend.DeleteCalls()
	if len(calls) != 3 {
		t.Fatalf("Expected exactly 3 delete calls, got %d", len(calls))
	}
	for i, want := range []int{25, 25, 2} {
		if len(calls[i]) != want {
			t.Errorf("Call %d: expected %d ids, got %d", i, want, len(calls[i]))
		}
	}

	if left := partitionSize(t, st, surfaceEN, prospect.TypeTimeSpent); left != 0 {
		t.Errorf("Expected empty partition, got %d records", left)
	}
}

func TestSweep_IdempotentReSweep(t *testing.T) {
	st, backend := newTestStore(t)
	insertN(t, st, "stale", surfaceEN, prospect.TypeTimeSpent, staleAt, 30)
	sweeper := NewSweeper(st)

	if _, err := sweeper.Sweep(context.Background(), surfaceEN, prospect.TypeTimeSpent, now, maxAge); err != nil {
		t.Fatalf("First Sweep() failed: %v", err)
	}
	backend.ResetDeleteCalls()

	result, err := sweeper.Sweep(context.Background(), surfaceEN, prospect.TypeTimeSpent, now, maxAge)
	if err != nil {
		t.Fatalf("Second Sweep() failed: %v", err)
	}
	if result.DeletedCount != 0 || result.Chunks != 0 {
		t.Errorf("Expected empty second result, got %+v", result)
	}
	if len(backend.DeleteCalls()) != 0 {
		t.Errorf("Expected zero delete calls on re-sweep, got %d", len(backend.DeleteCalls()))
	}
}

func TestSweep_NoCrossPartitionLeakage(t *testing.T) {
	st, _ := newTestStore(t)
	insertN(t, st, "a", surfaceEN, prospect.TypeTimeSpent, staleAt, 30)
	insertN(t, st, "b-surface", surfaceDE, prospect.TypeTimeSpent, staleAt, 30)
	insertN(t, st, "b-type", surfaceEN, prospect.TypeSyndicatedNew, staleAt, 30)

	result, err := NewSweeper(st).Sweep(context.Background(), surfaceEN, prospect.TypeTimeSpent, now, maxAge)
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if result.DeletedCount != 30 {
		t.Errorf("Expected 30 deleted, got %d", result.DeletedCount)
	}

	if left := partitionSize(t, st, surfaceDE, prospect.TypeTimeSpent); left != 30 {
		t.Errorf("Other surface lost records: %d left", left)
	}
	if left := partitionSize(t, st, surfaceEN, prospect.TypeSyndicatedNew); left != 30 {
		t.Errorf("Other type lost records: %d left", left)
	}
}

func TestSweep_QueryFailureAborts(t *testing.T) {
	st, backend := newTestStore(t)
	insertN(t, st, "stale", surfaceEN, prospect.TypeTimeSpent, staleAt, 3)
	backend.SetQueryError(errors.New("index unavailable"))

	recorder := &fakeRecorder{}
	sweeper := NewSweeper(st)
	sweeper.SetRecorder(recorder)

	_, err := sweeper.Sweep(context.Background(), surfaceEN, prospect.TypeTimeSpent, now, maxAge)

	var pErr *prospect.PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("Expected PersistenceError, got %v", err)
	}
	if len(backend.DeleteCalls()) != 0 {
		t.Error("No deletes should be issued after a failed query")
	}
	if recorder.outcomes[OutcomeError] != 1 {
		t.Errorf("Expected one error outcome, got %v", recorder.outcomes)
	}
}

func TestSweep_ChunkFailureIsNotAnError(t *testing.T) {
	st, backend := newTestStore(t)
	insertN(t, st, "stale", surfaceEN, prospect.TypeTimeSpent, staleAt, 3)
	backend.SetDeleteHook(func(batch []string) ([]string, error) {
		return nil, errors.New("throttled")
	})

	recorder := &fakeRecorder{}
	sweeper := NewSweeper(st)
	sweeper.SetRecorder(recorder)

	result, err := sweeper.Sweep(context.Background(), surfaceEN, prospect.TypeTimeSpent, now, maxAge)
	if err != nil {
		t.Fatalf("Chunk failures should not be returned as errors: %v", err)
	}
	if len(result.FailedIDs) != 3 {
		t.Errorf("Expected 3 failed ids, got %v", result.FailedIDs)
	}
	if recorder.outcomes[OutcomePartial] != 1 {
		t.Errorf("Expected one partial outcome, got %v", recorder.outcomes)
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *fakeRecorder) RecordSweep(partition prospect.Partition, outcome string, duration time.Duration, result prospect.EvictionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

// slowQueryBackend widens the window between a sweep's query and its deletes.
type slowQueryBackend struct {
	*storage.MemoryStorage
}

func (b slowQueryBackend) QueryPartition(ctx context.Context, partition prospect.Partition) ([]*prospect.CandidateRecord, error) {
	records, err := b.MemoryStorage.QueryPartition(ctx, partition)
	time.Sleep(10 * time.Millisecond)
	return records, err
}

func TestSweep_ConcurrentSweepsAreSerialized(t *testing.T) {
	backend := storage.NewMemoryStorage()
	st, err := store.New(slowQueryBackend{backend}, &store.Config{
		MaxBatchDelete: 25,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Clock:          func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("store.New() failed: %v", err)
	}
	insertN(t, st, "stale", surfaceEN, prospect.TypeTimeSpent, staleAt, 30)
	sweeper := NewSweeper(st)

	var wg sync.WaitGroup
	results := make([]prospect.EvictionResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := sweeper.Sweep(context.Background(), surfaceEN, prospect.TypeTimeSpent, now, maxAge)
			if err != nil {
				t.Errorf("Sweep() failed: %v", err)
			}
			results[i] = result
		}(i)
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		total += r.DeletedCount
	}
	if total != 30 {
		t.Errorf("Expected 30 deletions across all sweeps, got %d", total)
	}
	if calls := len(backend.DeleteCalls()); calls != 2 {
		t.Errorf("Expected 2 delete calls, got %d", calls)
	}
}
