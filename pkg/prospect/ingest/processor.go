// Package ingest turns candidate batch messages into stored records.
//
// Each message is handled on its own; batches are never merged. Processing
// validates the message, sweeps every partition the batch touches, and only
// then inserts the new records, so a run's records are never removed by the
// sweep that its own arrival triggered.
package ingest

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// Ingest outcomes reported to the Recorder.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Inserter writes records.
type Inserter interface {
	Insert(ctx context.Context, record *prospect.CandidateRecord) error
}

// Sweeper runs one retention pass over a partition.
type Sweeper interface {
	Sweep(ctx context.Context, surfaceGUID string, candidateType prospect.CandidateType, now time.Time, maxAgeMinutes int) (prospect.EvictionResult, error)
}

// Recorder receives one call per processed message.
// metrics.Collector implements it.
type Recorder interface {
	RecordIngest(outcome string, candidates int)
}

// Config configures a Processor.
type Config struct {
	// MaxAgeMinutes is the staleness threshold used for the pre-insert sweep.
	MaxAgeMinutes int

	// AllowedTypes restricts accepted candidate types. Empty allows all known types.
	AllowedTypes []prospect.CandidateType
}

// Summary describes a processed message.
type Summary struct {
	MessageID  string               `json:"message_id"`
	Run        string               `json:"run,omitempty"`
	Inserted   int                  `json:"inserted"`
	Partitions []prospect.Partition `json:"partitions"`
	Evicted    int                  `json:"evicted"`
	FailedIDs  []string             `json:"failed_ids,omitempty"`
}

// recordNamespace scopes the name-based record IDs.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:prospects:candidate-record"))

// RecordID returns the ID of the record made from the candidate at index in
// message messageID. Redelivering a message yields the same IDs, so its
// inserts overwrite instead of duplicating.
func RecordID(messageID string, index int, prospectID string) string {
	name := messageID + "/" + strconv.Itoa(index) + "/" + prospectID
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}

// Processor handles one message at a time.
type Processor struct {
	store    Inserter
	sweeper  Sweeper
	config   Config
	maxAge   atomic.Int64
	validate *validator.Validate
	recorder Recorder
	clock    func() time.Time
	newID    func(messageID string, index int, prospectID string) string
	logger   *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(store Inserter, sweeper Sweeper, config *Config) *Processor {
	var cfg Config
	if config != nil {
		cfg = *config
	}

	allowed := make(map[prospect.CandidateType]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[t] = true
	}

	p := &Processor{
		store:    store,
		sweeper:  sweeper,
		config:   cfg,
		validate: newValidator(allowed),
		clock:    time.Now,
		newID:    RecordID,
		logger:   slog.Default().With("component", "prospect.ingest"),
	}
	p.maxAge.Store(int64(cfg.MaxAgeMinutes))
	return p
}

// SetMaxAgeMinutes changes the threshold used by later pre-insert sweeps.
func (p *Processor) SetMaxAgeMinutes(minutes int) {
	p.maxAge.Store(int64(minutes))
}

// MaxAgeMinutes returns the current pre-insert sweep threshold.
func (p *Processor) MaxAgeMinutes() int {
	return int(p.maxAge.Load())
}

// SetRecorder installs an ingest recorder.
func (p *Processor) SetRecorder(r Recorder) {
	p.recorder = r
}

// Validate checks a message without processing it.
func (p *Processor) Validate(msg *Message) error {
	return validateMessage(p.validate, msg)
}

// Process validates msg, sweeps each partition it touches (in first-seen
// order), then inserts one record per candidate. A ValidationError means the
// message must not be retried. A failed sweep query or insert aborts the
// message and is returned so the caller can redeliver it.
func (p *Processor) Process(ctx context.Context, msg *Message) (*Summary, error) {
	if err := p.Validate(msg); err != nil {
		candidates := 0
		if msg != nil {
			candidates = len(msg.Candidates)
		}
		p.logger.Warn("message rejected", "error", err)
		p.record(OutcomeRejected, candidates)
		return nil, err
	}

	logger := p.logger.With("message_id", msg.ID, "run", msg.Run, "flow", msg.Flow)
	summary := &Summary{
		MessageID:  msg.ID,
		Run:        msg.Run,
		Partitions: partitionsOf(msg.Candidates),
	}

	now := p.clock()
	maxAge := p.MaxAgeMinutes()
	for _, partition := range summary.Partitions {
		result, err := p.sweeper.Sweep(ctx, partition.SurfaceGUID, partition.CandidateType, now, maxAge)
		if err != nil {
			logger.Error("pre-insert sweep failed", "partition", partition.String(), "error", err)
			p.record(OutcomeFailed, len(msg.Candidates))
			return summary, err
		}
		summary.Evicted += result.DeletedCount
		if len(result.FailedIDs) > 0 {
			logger.Warn("pre-insert sweep left stale records",
				"partition", partition.String(),
				"failed", len(result.FailedIDs),
			)
			summary.FailedIDs = append(summary.FailedIDs, result.FailedIDs...)
		}
	}

	for i := range msg.Candidates {
		record := p.toRecord(msg.ID, i, &msg.Candidates[i])
		if err := p.store.Insert(ctx, record); err != nil {
			logger.Error("insert failed",
				"candidate_source_id", record.CandidateSourceID,
				"inserted", summary.Inserted,
				"error", err,
			)
			p.record(OutcomeFailed, len(msg.Candidates))
			return summary, err
		}
		summary.Inserted++
	}

	logger.Info("message processed",
		"inserted", summary.Inserted,
		"partitions", len(summary.Partitions),
		"evicted", summary.Evicted,
	)
	p.record(OutcomeAccepted, len(msg.Candidates))

	return summary, nil
}

// toRecord maps a candidate to a new record. CreatedAt is left for the store
// to assign at insertion.
func (p *Processor) toRecord(messageID string, index int, c *Candidate) *prospect.CandidateRecord {
	return &prospect.CandidateRecord{
		ID:                p.newID(messageID, index, c.ProspectID),
		CandidateSourceID: c.ProspectID,
		SurfaceGUID:       c.ScheduledSurfaceGUID,
		CandidateType:     prospect.CandidateType(c.ProspectSource),
		Topic:             c.PredictedTopic,
		URL:               c.URL,
		SaveCount:         c.SaveCount,
		Rank:              c.Rank,
	}
}

func (p *Processor) record(outcome string, candidates int) {
	if p.recorder != nil {
		p.recorder.RecordIngest(outcome, candidates)
	}
}

// partitionsOf returns the distinct partitions of candidates in first-seen order.
func partitionsOf(candidates []Candidate) []prospect.Partition {
	seen := make(map[prospect.Partition]bool)
	var partitions []prospect.Partition
	for i := range candidates {
		p := candidates[i].Partition()
		if !seen[p] {
			seen[p] = true
			partitions = append(partitions, p)
		}
	}
	return partitions
}
