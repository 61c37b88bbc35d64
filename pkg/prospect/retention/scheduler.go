package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// Config contains configuration for scheduled multi-partition sweeps.
type Config struct {
	// Schedule is a cron expression for scheduled sweeps.
	// Example: "*/15 * * * *" (every 15 minutes). Empty disables the scheduler.
	Schedule string

	// MaxAgeMinutes is the staleness threshold applied to every partition.
	MaxAgeMinutes int

	// Partitions are swept sequentially in this order.
	Partitions []prospect.Partition
}

// Validate checks the threshold and every partition.
func (c *Config) Validate() error {
	if c.MaxAgeMinutes < 0 {
		return prospect.NewValidationError("max_age_minutes",
			fmt.Sprintf("must be non-negative, got %d", c.MaxAgeMinutes))
	}
	for i, p := range c.Partitions {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("partitions[%d]: %w", i, err)
		}
	}
	return nil
}

// RunSummary aggregates one pass over every configured partition.
type RunSummary struct {
	prospect.EvictionResult

	// Partitions is the number of partitions swept.
	Partitions int `json:"partitions"`

	// FailedPartitions lists partitions whose stale query failed. They are
	// retried on the next run.
	FailedPartitions []prospect.Partition `json:"failed_partitions,omitempty"`
}

// String renders the summary on one line.
func (s RunSummary) String() string {
	return fmt.Sprintf("partitions=%d failed_partitions=%d deleted=%d failed=%d chunks=%d",
		s.Partitions, len(s.FailedPartitions), s.DeletedCount, len(s.FailedIDs), s.Chunks)
}

// Scheduler runs sweeps over the configured partitions on a cron schedule.
// Overlapping runs are skipped so at most one pass is in flight.
type Scheduler struct {
	sweeper *Sweeper
	cron    *cron.Cron
	clock   func() time.Time
	mu      sync.Mutex
	logger  *slog.Logger
	running bool

	cfgMu  sync.RWMutex
	config Config
}

// NewScheduler creates a new retention scheduler.
func NewScheduler(sweeper *Sweeper, config *Config) *Scheduler {
	logger := slog.Default().With("component", "prospect.scheduler")

	s := &Scheduler{
		sweeper: sweeper,
		clock:   time.Now,
		logger:  logger,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger}))),
	}
	if config != nil {
		s.config = cloneConfig(config)
	}
	return s
}

// Start begins scheduled sweeps based on the cron expression in the config.
// If the schedule is empty, the scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.currentConfig()
	if cfg.Schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", cfg.Schedule, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid retention config: %w", err)
	}

	_, err := s.cron.AddFunc(cfg.Schedule, func() {
		s.runScheduled(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweeps: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", cfg.Schedule,
		"max_age_minutes", cfg.MaxAgeMinutes,
		"partitions", len(cfg.Partitions),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Update replaces the partitions and threshold used by future runs. A changed
// schedule only takes effect after a restart.
func (s *Scheduler) Update(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	if config.Schedule != s.config.Schedule {
		s.logger.Warn("sweep schedule changed, restart required to apply",
			"current", s.config.Schedule,
			"requested", config.Schedule,
		)
	}
	schedule := s.config.Schedule
	s.config = cloneConfig(config)
	s.config.Schedule = schedule

	s.logger.Info("retention config updated",
		"max_age_minutes", config.MaxAgeMinutes,
		"partitions", len(config.Partitions),
	)
	return nil
}

// RunOnce sweeps every configured partition sequentially in configuration
// order. A partition whose query fails is logged and skipped.
func (s *Scheduler) RunOnce(ctx context.Context) RunSummary {
	cfg := s.currentConfig()
	now := s.clock()

	var summary RunSummary
	for _, p := range cfg.Partitions {
		if ctx.Err() != nil {
			s.logger.Warn("sweep run cancelled", "remaining_from", p.String())
			break
		}

		summary.Partitions++
		result, err := s.sweeper.Sweep(ctx, p.SurfaceGUID, p.CandidateType, now, cfg.MaxAgeMinutes)
		if err != nil {
			s.logger.Error("partition sweep failed",
				"partition", p.String(),
				"error", err,
			)
			summary.FailedPartitions = append(summary.FailedPartitions, p)
			continue
		}
		summary.Merge(result)
	}

	return summary
}

// runScheduled executes one scheduled pass.
func (s *Scheduler) runScheduled(ctx context.Context) {
	s.logger.Info("starting scheduled sweep")

	summary := s.RunOnce(ctx)

	if len(summary.FailedIDs) > 0 || len(summary.FailedPartitions) > 0 {
		s.logger.Warn("scheduled sweep completed with failures",
			"partitions", summary.Partitions,
			"deleted_count", summary.DeletedCount,
			"failed_ids", len(summary.FailedIDs),
			"failed_partitions", len(summary.FailedPartitions),
		)
		return
	}

	if summary.DeletedCount > 0 {
		s.logger.Info("scheduled sweep completed",
			"partitions", summary.Partitions,
			"deleted_count", summary.DeletedCount,
		)
	} else {
		s.logger.Debug("scheduled sweep completed, no records deleted")
	}
}

// Stop stops the scheduler and waits for any running pass to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled sweep time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}

func (s *Scheduler) currentConfig() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()

	return cloneConfig(&s.config)
}

func cloneConfig(c *Config) Config {
	out := *c
	out.Partitions = append([]prospect.Partition(nil), c.Partitions...)
	return out
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
