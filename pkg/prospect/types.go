package prospect

import (
	"context"
	"fmt"
	"strings"
)

// CandidateType classifies a candidate. Together with the surface GUID it
// forms the partition used for retention.
type CandidateType string

// Known candidate types.
const (
	TypeTimeSpent              CandidateType = "time-spent"
	TypeSyndicatedNew          CandidateType = "syndicated-new"
	TypeSyndicatedRerun        CandidateType = "syndicated-rerun"
	TypeGlobal                 CandidateType = "global"
	TypeOrganicTimeSpent       CandidateType = "organic-timespent"
	TypeTopSaved               CandidateType = "top-saved"
	TypeDismissed              CandidateType = "dismissed"
	TypeCountsLogisticApproval CandidateType = "counts-logistic-approval"
	TypeConstraintSchedule     CandidateType = "constraint-schedule"
	TypeSlateScheduler         CandidateType = "slate-scheduler"
	TypeRecommended            CandidateType = "recommended"
)

// CandidateTypes lists every known candidate type.
var CandidateTypes = []CandidateType{
	TypeTimeSpent,
	TypeSyndicatedNew,
	TypeSyndicatedRerun,
	TypeGlobal,
	TypeOrganicTimeSpent,
	TypeTopSaved,
	TypeDismissed,
	TypeCountsLogisticApproval,
	TypeConstraintSchedule,
	TypeSlateScheduler,
	TypeRecommended,
}

// Valid reports whether t is one of the known candidate types.
func (t CandidateType) Valid() bool {
	for _, known := range CandidateTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseCandidateType converts s to a CandidateType, rejecting unknown values.
func ParseCandidateType(s string) (CandidateType, error) {
	t := CandidateType(strings.TrimSpace(s))
	if !t.Valid() {
		return "", NewValidationError("candidate_type", fmt.Sprintf("unknown candidate type %q", s))
	}
	return t, nil
}

// CandidateRecord is one proposed item awaiting editorial review.
// Records are never updated in place; a replacement is a new insert followed by
// eviction of the old record.
type CandidateRecord struct {
	// Identity
	ID                string `json:"id"`                  // Unique, assigned by the producer
	CandidateSourceID string `json:"candidate_source_id"` // Upstream candidate identifier

	// Partition
	SurfaceGUID   string        `json:"surface_guid"`   // Target scheduled surface
	CandidateType CandidateType `json:"candidate_type"` // Classification type

	// Content
	Topic     string `json:"topic,omitempty"` // Predicted topic
	URL       string `json:"url"`
	SaveCount int    `json:"save_count"` // Popularity signal
	Rank      int    `json:"rank"`       // Producer ordering signal

	// CreatedAt is the insertion time in unix seconds. It is set once and is
	// used only for retention decisions.
	CreatedAt int64 `json:"created_at"`
}

// Partition returns the retention partition the record belongs to.
func (r *CandidateRecord) Partition() Partition {
	return Partition{SurfaceGUID: r.SurfaceGUID, CandidateType: r.CandidateType}
}

// Validate checks the record's required fields.
func (r *CandidateRecord) Validate() error {
	switch {
	case r == nil:
		return NewValidationError("record", "record is nil")
	case r.ID == "":
		return NewValidationError("id", "id is required")
	case r.SurfaceGUID == "":
		return NewValidationError("surface_guid", "surface guid is required")
	case !r.CandidateType.Valid():
		return NewValidationError("candidate_type", fmt.Sprintf("unknown candidate type %q", r.CandidateType))
	case r.URL == "":
		return NewValidationError("url", "url is required")
	case r.SaveCount < 0:
		return NewValidationError("save_count", fmt.Sprintf("save count must be non-negative, got %d", r.SaveCount))
	case r.CreatedAt < 0:
		return NewValidationError("created_at", fmt.Sprintf("created at must be non-negative, got %d", r.CreatedAt))
	}
	return nil
}

// Partition is the composite (surface, candidate type) key used for retention
// grouping.
type Partition struct {
	SurfaceGUID   string        `json:"surface_guid" yaml:"surface_guid"`
	CandidateType CandidateType `json:"candidate_type" yaml:"candidate_type"`
}

// String returns the partition as "surface/type".
func (p Partition) String() string {
	return p.SurfaceGUID + "/" + string(p.CandidateType)
}

// Validate checks that both halves of the partition key are usable.
func (p Partition) Validate() error {
	if p.SurfaceGUID == "" {
		return NewValidationError("surface_guid", "surface guid is required")
	}
	if !p.CandidateType.Valid() {
		return NewValidationError("candidate_type", fmt.Sprintf("unknown candidate type %q", p.CandidateType))
	}
	return nil
}

// EvictionResult summarizes one eviction pass. A non-empty FailedIDs does not by
// itself make the pass an error; callers decide how to react.
type EvictionResult struct {
	DeletedCount int      `json:"deleted_count"`
	FailedIDs    []string `json:"failed_ids,omitempty"`

	// Chunks is the number of delete calls issued.
	Chunks int `json:"chunks"`
}

// Merge folds other into r.
func (r *EvictionResult) Merge(other EvictionResult) {
	r.DeletedCount += other.DeletedCount
	r.FailedIDs = append(r.FailedIDs, other.FailedIDs...)
	r.Chunks += other.Chunks
}

// Backend is the external key/value persistence layer: a table keyed by record
// ID with a secondary index on the partition. Implementations must be safe for
// concurrent use and must honour context cancellation on every call.
type Backend interface {
	// Put writes a record, overwriting any record with the same ID.
	Put(ctx context.Context, record *CandidateRecord) error

	// Get returns the record with the given ID, or nil if it does not exist.
	Get(ctx context.Context, id string) (*CandidateRecord, error)

	// QueryPartition returns every record in the partition, in no particular order.
	QueryPartition(ctx context.Context, partition Partition) ([]*CandidateRecord, error)

	// BatchDelete deletes the given IDs. IDs the backend could not process
	// (throttling, partial failure) are returned as unprocessed; a non-nil error
	// means the call as a whole failed. Deleting an absent ID is not an error.
	BatchDelete(ctx context.Context, ids []string) (unprocessed []string, err error)

	// Name identifies the backend in logs and errors ("memory", "sqlite", ...).
	Name() string

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}
