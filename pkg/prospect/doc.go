// Package prospect defines the candidate records proposed for editorial
// curation and the persistence contract used to store and evict them.
//
// # Architecture
//
// The prospect system consists of four layers:
//
//  1. Backend - key/value persistence keyed by record ID with a secondary
//     index on the (surface, candidate type) partition (memory, SQLite,
//     Redis, PostgreSQL)
//  2. Store - point CRUD primitives with the bulk-delete ceiling and bounded
//     retry of throttled or partially processed calls
//  3. Retention - finds stale records in a partition and evicts them in
//     chunks that respect the Store's per-call limit
//  4. Ingest - validates incoming candidate batches, sweeps the partitions they
//     touch and inserts the new records
//
// # Partitions
//
// Records are grouped by Partition, the composite of SurfaceGUID and
// CandidateType. A partition is not unique; many records share one. Retention
// always operates on exactly one partition at a time:
//
//	result, err := sweeper.Sweep(ctx, "NEW_TAB_EN_US", prospect.TypeTimeSpent, time.Now(), 30)
//	if err != nil {
//	    // query failed, nothing was deleted
//	}
//	if len(result.FailedIDs) > 0 {
//	    // some chunks could not be deleted, the next sweep retries them
//	}
//
// # Errors
//
// Failures are reported through four error types: ValidationError,
// BatchTooLargeError, PersistenceError and PartialDeleteError. Match them with
// errors.As.
package prospect
