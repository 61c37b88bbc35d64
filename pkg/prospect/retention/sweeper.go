package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
	"github.com/Pocket/content-monorepo-sub003/pkg/telemetry/tracing"
)

// Sweep outcomes reported to the Recorder.
const (
	OutcomeEmpty   = "empty"   // nothing stale
	OutcomeSuccess = "success" // every stale record deleted
	OutcomePartial = "partial" // some ids failed
	OutcomeError   = "error"   // the query step failed
)

// Store is what a Sweeper needs from the candidate store.
type Store interface {
	PartitionReader
	Deleter
}

// Recorder receives one call per completed sweep.
// metrics.Collector implements it.
type Recorder interface {
	RecordSweep(partition prospect.Partition, outcome string, duration time.Duration, result prospect.EvictionResult)
}

// Sweeper runs one full retention pass over a single partition: find the stale
// records, then evict all of them. It keeps no state between calls and is safe
// to call again after a partial failure. Concurrent calls are serialized.
type Sweeper struct {
	mu       sync.Mutex
	query    *Query
	evictor  *Evictor
	recorder Recorder
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper over store.
func NewSweeper(store Store) *Sweeper {
	return &Sweeper{
		query:   NewQuery(store),
		evictor: NewEvictor(store),
		tracer:  otel.Tracer(tracing.InstrumentationName + "/pkg/prospect/retention"),
		logger:  slog.Default().With("component", "prospect.retention"),
	}
}

// SetRecorder installs a sweep recorder.
func (s *Sweeper) SetRecorder(r Recorder) {
	s.recorder = r
}

// Sweep evicts every record of the partition created at or before now minus
// maxAgeMinutes. Only a failure of the query step is returned as an error;
// chunk failures are reported in the result's FailedIDs. When nothing is stale
// no delete call is issued.
func (s *Sweeper) Sweep(ctx context.Context, surfaceGUID string, candidateType prospect.CandidateType, now time.Time, maxAgeMinutes int) (prospect.EvictionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	partition := prospect.Partition{SurfaceGUID: surfaceGUID, CandidateType: candidateType}
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "partition", partition.String())

	ctx, span := s.tracer.Start(ctx, "retention.Sweep",
		trace.WithAttributes(tracing.PartitionAttributes(partition)...),
		trace.WithAttributes(
			tracing.AttrRunID.String(runID),
			tracing.AttrMaxAgeMinutes.Int(maxAgeMinutes),
		),
	)
	defer span.End()

	stale, err := s.query.FindStale(ctx, surfaceGUID, candidateType, now, maxAgeMinutes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "find stale failed")
		logger.Error("sweep aborted, stale query failed", "error", err)
		s.record(partition, OutcomeError, start, prospect.EvictionResult{})
		return prospect.EvictionResult{}, err
	}

	if len(stale) == 0 {
		logger.Debug("no stale records")
		s.record(partition, OutcomeEmpty, start, prospect.EvictionResult{})
		return prospect.EvictionResult{}, nil
	}

	ids := make([]string, len(stale))
	for i, r := range stale {
		ids[i] = r.ID
	}

	result := s.evictor.EvictAll(ctx, ids)

	span.SetAttributes(tracing.EvictionAttributes(len(ids), result)...)

	outcome := OutcomeSuccess
	if len(result.FailedIDs) > 0 {
		outcome = OutcomePartial
		span.SetStatus(codes.Error, "some ids failed to evict")
		logger.Warn("sweep completed with failures",
			"stale", len(ids),
			"deleted", result.DeletedCount,
			"failed", len(result.FailedIDs),
			"chunks", result.Chunks,
		)
	} else {
		logger.Info("sweep completed",
			"deleted", result.DeletedCount,
			"chunks", result.Chunks,
			"duration", time.Since(start),
		)
	}

	s.record(partition, outcome, start, result)
	return result, nil
}

func (s *Sweeper) record(partition prospect.Partition, outcome string, start time.Time, result prospect.EvictionResult) {
	if s.recorder != nil {
		s.recorder.RecordSweep(partition, outcome, time.Since(start), result)
	}
}
