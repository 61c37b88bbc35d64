package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// SQLite driver names.
const (
	// DriverCGO is github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"
	// DriverPureGo is modernc.org/sqlite, for builds without cgo.
	DriverPureGo = "sqlite"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the database/sql driver: "sqlite3" or "sqlite".
	// Default: "sqlite3"
	Driver string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/prospects.db",
		Driver:       DriverCGO,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements prospect.Backend using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, initializes the schema and enables WAL
// mode if configured.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverCGO
	}
	if config.Driver != DriverCGO && config.Driver != DriverPureGo {
		return nil, prospect.NewValidationError("sqlite.driver",
			fmt.Sprintf("unsupported driver %q (want %q or %q)", config.Driver, DriverCGO, DriverPureGo))
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "prospect.storage.sqlite")

	if dir := filepath.Dir(config.Path); config.Path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, prospect.NewPersistenceError("sqlite", "open", 1, err)
		}
	}

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, prospect.NewPersistenceError("sqlite", "open", 1, err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return prospect.NewPersistenceError("sqlite", "enable_wal", 1, err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return prospect.NewPersistenceError("sqlite", "set_busy_timeout", 1, err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return prospect.NewPersistenceError("sqlite", "create_schema", 1, err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return prospect.NewPersistenceError("sqlite", "insert_schema_version", 1, err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return prospect.NewPersistenceError("sqlite", "get_schema_version", 1, err)
	}
	if version != SchemaVersion {
		return prospect.NewPersistenceError("sqlite", "schema_version_mismatch", 1,
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Name returns "sqlite".
func (s *SQLiteStorage) Name() string { return "sqlite" }

// Put writes a record, replacing any row with the same ID.
func (s *SQLiteStorage) Put(ctx context.Context, record *prospect.CandidateRecord) error {
	query := `INSERT OR REPLACE INTO prospects (` + prospectColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var topic interface{}
	if record.Topic != "" {
		topic = record.Topic
	}

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.CandidateSourceID,
		record.SurfaceGUID, string(record.CandidateType),
		topic, record.URL, record.SaveCount, record.Rank,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite put %s: %w", record.ID, err)
	}
	return nil
}

// Get returns the record with the given ID, or nil if absent.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*prospect.CandidateRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+prospectColumns+` FROM prospects WHERE id = ?`, id)

	record, err := scanProspect(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %s: %w", id, err)
	}
	return record, nil
}

// QueryPartition scans the partition index.
func (s *SQLiteStorage) QueryPartition(ctx context.Context, partition prospect.Partition) ([]*prospect.CandidateRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE surface_guid = ? AND candidate_type = ?`,
		partition.SurfaceGUID, string(partition.CandidateType),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite query partition %s: %w", partition, err)
	}
	defer rows.Close()

	records := []*prospect.CandidateRecord{}
	for rows.Next() {
		record, err := scanProspect(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite query partition %s: %w", partition, err)
	}

	return records, nil
}

// BatchDelete deletes the IDs in a single statement. SQLite either applies the
// whole statement or none of it, so there are never unprocessed IDs.
func (s *SQLiteStorage) BatchDelete(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM prospects WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite delete: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil {
		s.logger.Debug("deleted prospects", "requested", len(ids), "deleted", n)
	}

	return nil, nil
}

// Ping checks the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases resources held by the storage backend.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return prospect.NewPersistenceError("sqlite", "close", 1, err)
	}

	s.logger.Info("SQLite storage closed")
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProspect scans a database row into a CandidateRecord.
func scanProspect(row rowScanner) (*prospect.CandidateRecord, error) {
	var record prospect.CandidateRecord
	var candidateType string
	var topic sql.NullString

	err := row.Scan(
		&record.ID, &record.CandidateSourceID,
		&record.SurfaceGUID, &candidateType,
		&topic, &record.URL, &record.SaveCount, &record.Rank,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.CandidateType = prospect.CandidateType(candidateType)
	if topic.Valid {
		record.Topic = topic.String
	}

	return &record, nil
}
