package retention

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// Deleter is the delete side of the store used by Evictor.
type Deleter interface {
	DeleteByIDs(ctx context.Context, ids []string) error
	MaxBatchDelete() int
}

// Evictor deletes arbitrarily long ID lists in chunks no larger than the
// store's per-call ceiling.
type Evictor struct {
	deleter Deleter
	logger  *slog.Logger
}

// NewEvictor creates an Evictor over deleter.
func NewEvictor(deleter Deleter) *Evictor {
	return &Evictor{
		deleter: deleter,
		logger:  slog.Default().With("component", "prospect.retention.evictor"),
	}
}

// EvictAll deletes ids in consecutive chunks, one DeleteByIDs call per chunk,
// sequentially and in the given order. A failed chunk does not stop the
// remaining chunks. When the failure is a PartialDeleteError only the IDs it
// names are reported as failed; any other error fails the whole chunk.
func (e *Evictor) EvictAll(ctx context.Context, ids []string) prospect.EvictionResult {
	var result prospect.EvictionResult
	if len(ids) == 0 {
		return result
	}

	size := e.deleter.MaxBatchDelete()
	for chunk := range slices.Chunk(ids, size) {
		result.Chunks++

		err := e.deleter.DeleteByIDs(ctx, chunk)
		if err == nil {
			result.DeletedCount += len(chunk)
			continue
		}

		var partial *prospect.PartialDeleteError
		if errors.As(err, &partial) {
			result.DeletedCount += len(chunk) - len(partial.Unprocessed)
			result.FailedIDs = append(result.FailedIDs, partial.Unprocessed...)
		} else {
			result.FailedIDs = append(result.FailedIDs, chunk...)
		}

		e.logger.Warn("chunk eviction failed",
			"chunk", result.Chunks,
			"chunk_size", len(chunk),
			"error", err,
		)
	}

	return result
}
