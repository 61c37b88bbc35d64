// Package storage provides persistence backends for candidate records.
//
// # Storage Backends
//
// Every backend implements prospect.Backend: a table keyed by record ID with a
// secondary index on the (surface, candidate type) partition.
//
//   - Memory: in-memory maps, with fault injection for tests
//   - SQLite: embedded database (mattn/go-sqlite3, or modernc.org/sqlite for
//     cgo-free builds)
//   - Redis: JSON values plus one set per partition
//   - PostgreSQL: gorm model with a composite partition index
//
// # Bulk Delete Semantics
//
// BatchDelete reports IDs the backend could not process instead of failing the
// whole call. SQLite and PostgreSQL delete in one statement and never leave IDs
// unprocessed; Redis reports IDs whose DEL command failed inside the pipeline;
// the memory backend reports whatever its DeleteHook returns. Backends do not
// enforce the per-call ceiling; store.Store does.
//
// # Basic Usage
//
//	backend, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
//	    Path:        "data/prospects.db",
//	    WALMode:     true,
//	    BusyTimeout: 5 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	records, err := backend.QueryPartition(ctx, prospect.Partition{
//	    SurfaceGUID:   "NEW_TAB_EN_US",
//	    CandidateType: prospect.TypeTimeSpent,
//	})
//
// # Thread Safety
//
// All backends are safe for concurrent use.
package storage
