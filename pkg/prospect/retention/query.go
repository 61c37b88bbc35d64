package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// PartitionReader is the read side of the store used by Query.
type PartitionReader interface {
	QueryPartition(ctx context.Context, partition prospect.Partition) ([]*prospect.CandidateRecord, error)
}

// Query finds stale records within one partition. It never deletes.
type Query struct {
	reader PartitionReader
	logger *slog.Logger
}

// NewQuery creates a Query over reader.
func NewQuery(reader PartitionReader) *Query {
	return &Query{
		reader: reader,
		logger: slog.Default().With("component", "prospect.retention.query"),
	}
}

// Cutoff returns the newest CreatedAt still considered stale.
func Cutoff(now time.Time, maxAgeMinutes int) int64 {
	return now.Unix() - int64(maxAgeMinutes)*60
}

// FindStale returns the records of the (surfaceGUID, candidateType) partition
// whose CreatedAt is at or before now minus maxAgeMinutes. The order of the
// result is unspecified. An empty result is not an error.
func (q *Query) FindStale(ctx context.Context, surfaceGUID string, candidateType prospect.CandidateType, now time.Time, maxAgeMinutes int) ([]*prospect.CandidateRecord, error) {
	if maxAgeMinutes < 0 {
		return nil, prospect.NewValidationError("max_age_minutes",
			fmt.Sprintf("must be non-negative, got %d", maxAgeMinutes))
	}

	partition := prospect.Partition{SurfaceGUID: surfaceGUID, CandidateType: candidateType}
	if err := partition.Validate(); err != nil {
		return nil, err
	}

	records, err := q.reader.QueryPartition(ctx, partition)
	if err != nil {
		return nil, err
	}

	cutoff := Cutoff(now, maxAgeMinutes)
	stale := make([]*prospect.CandidateRecord, 0, len(records))
	for _, r := range records {
		if r.CreatedAt <= cutoff {
			stale = append(stale, r)
		}
	}

	q.logger.Debug("stale records found",
		"partition", partition.String(),
		"scanned", len(records),
		"stale", len(stale),
		"cutoff", cutoff,
	)

	return stale, nil
}
