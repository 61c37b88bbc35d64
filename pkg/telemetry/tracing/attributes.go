package tracing

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// Span attribute keys shared by the retention, ingest and HTTP spans.
const (
	AttrRunID         = attribute.Key("prospect.run_id")
	AttrSurfaceGUID   = attribute.Key("prospect.surface_guid")
	AttrCandidateType = attribute.Key("prospect.candidate_type")
	AttrMaxAgeMinutes = attribute.Key("prospect.max_age_minutes")
	AttrStale         = attribute.Key("prospect.stale")
	AttrDeleted       = attribute.Key("prospect.deleted")
	AttrFailed        = attribute.Key("prospect.failed")
	AttrChunks        = attribute.Key("prospect.chunks")
	AttrMessageID     = attribute.Key("prospect.message_id")
	AttrCandidates    = attribute.Key("prospect.candidates")
)

// PartitionAttributes describes a partition.
func PartitionAttributes(p prospect.Partition) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSurfaceGUID.String(p.SurfaceGUID),
		AttrCandidateType.String(string(p.CandidateType)),
	}
}

// EvictionAttributes describes the outcome of an eviction.
func EvictionAttributes(stale int, result prospect.EvictionResult) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrStale.Int(stale),
		AttrDeleted.Int(result.DeletedCount),
		AttrFailed.Int(len(result.FailedIDs)),
		AttrChunks.Int(result.Chunks),
	}
}
