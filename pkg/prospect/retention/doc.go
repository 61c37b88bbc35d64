// Package retention evicts stale candidate records.
//
// # Components
//
//   - Query: finds the records of one partition created at or before a cutoff
//   - Evictor: deletes an ID list in chunks no larger than the store's ceiling
//   - Sweeper: Query followed by Evictor for one partition
//   - Scheduler: runs Sweeper over every configured partition on a cron schedule
//
// A record is stale when CreatedAt <= now - maxAgeMinutes*60.
//
// # Basic Usage
//
//	sweeper := retention.NewSweeper(st)
//	result, err := sweeper.Sweep(ctx, "NEW_TAB_EN_US", prospect.TypeTimeSpent, time.Now(), 60)
//	if err != nil {
//	    // the stale query failed, nothing was deleted
//	}
//	if len(result.FailedIDs) > 0 {
//	    // left for the next sweep
//	}
//
// # Failure Model
//
// Chunks are deleted sequentially in discovery order. A failed chunk does not
// stop the others; its IDs are reported in EvictionResult.FailedIDs. Sweeps
// are not atomic, and running one again re-queries whatever is still stale.
//
// # Scheduling
//
// The Scheduler sweeps partitions one after another in configuration order.
// A partition whose query fails is skipped until the next run. Runs never
// overlap: a tick that fires while a pass is in flight is dropped.
//
//	scheduler := retention.NewScheduler(sweeper, &retention.Config{
//	    Schedule:      "*/15 * * * *",
//	    MaxAgeMinutes: 60,
//	    Partitions:    partitions,
//	})
//	if err := scheduler.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer scheduler.Stop()
//
// Sweeps within one process are serialized by the Sweeper, so scheduled and
// on-demand sweeps never overlap. Exclusion across processes is
// left to deployment policy.
package retention
