package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// PostgresConfig contains configuration for the PostgreSQL storage backend.
type PostgresConfig struct {
	// DSN, when set, is used verbatim and the other connection fields are ignored.
	DSN string

	Host     string
	Port     int
	Database string
	User     string
	Password string

	// SSLMode: "disable", "require", "verify-ca", "verify-full".
	// Default: "require"
	SSLMode string

	// AutoMigrate creates or updates the prospects table on startup.
	AutoMigrate bool
}

// ConnectionString returns the DSN for the configuration.
func (c *PostgresConfig) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.User, c.Password, c.Database, sslMode)
}

// prospectRow is the gorm model of the prospects table.
type prospectRow struct {
	ID                string  `gorm:"column:id;primaryKey;type:text"`
	CandidateSourceID string  `gorm:"column:candidate_source_id;not null"`
	SurfaceGUID       string  `gorm:"column:surface_guid;not null;index:idx_prospects_partition,priority:1"`
	CandidateType     string  `gorm:"column:candidate_type;not null;index:idx_prospects_partition,priority:2"`
	Topic             *string `gorm:"column:topic"`
	URL               string  `gorm:"column:url;not null"`
	SaveCount         int     `gorm:"column:save_count;not null;default:0"`
	Rank              int     `gorm:"column:rank;not null;default:0"`
	CreatedAt         int64   `gorm:"column:created_at;not null;autoCreateTime:false"`
}

// TableName pins the table name.
func (prospectRow) TableName() string { return "prospects" }

func toRow(r *prospect.CandidateRecord) *prospectRow {
	row := &prospectRow{
		ID:                r.ID,
		CandidateSourceID: r.CandidateSourceID,
		SurfaceGUID:       r.SurfaceGUID,
		CandidateType:     string(r.CandidateType),
		URL:               r.URL,
		SaveCount:         r.SaveCount,
		Rank:              r.Rank,
		CreatedAt:         r.CreatedAt,
	}
	if r.Topic != "" {
		topic := r.Topic
		row.Topic = &topic
	}
	return row
}

func (row *prospectRow) record() *prospect.CandidateRecord {
	r := &prospect.CandidateRecord{
		ID:                row.ID,
		CandidateSourceID: row.CandidateSourceID,
		SurfaceGUID:       row.SurfaceGUID,
		CandidateType:     prospect.CandidateType(row.CandidateType),
		URL:               row.URL,
		SaveCount:         row.SaveCount,
		Rank:              row.Rank,
		CreatedAt:         row.CreatedAt,
	}
	if row.Topic != nil {
		r.Topic = *row.Topic
	}
	return r
}

// PostgresStorage implements prospect.Backend on PostgreSQL through gorm.
type PostgresStorage struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewPostgresStorage connects to PostgreSQL and optionally migrates the schema.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	if cfg == nil {
		return nil, prospect.NewValidationError("postgres", "postgres config is required")
	}

	db, err := gorm.Open(postgres.Open(cfg.ConnectionString()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, prospect.NewPersistenceError("postgres", "open", 1, err)
	}

	return newPostgresStorage(db, cfg.AutoMigrate)
}

// NewPostgresStorageWithDB wraps an open gorm handle.
func NewPostgresStorageWithDB(db *gorm.DB, autoMigrate bool) (*PostgresStorage, error) {
	return newPostgresStorage(db, autoMigrate)
}

func newPostgresStorage(db *gorm.DB, autoMigrate bool) (*PostgresStorage, error) {
	s := &PostgresStorage{
		db:     db,
		logger: slog.Default().With("component", "prospect.storage.postgres"),
	}

	if autoMigrate {
		if err := db.AutoMigrate(&prospectRow{}); err != nil {
			return nil, prospect.NewPersistenceError("postgres", "migrate", 1, err)
		}
		s.logger.Debug("prospects table migrated")
	}

	s.logger.Info("PostgreSQL storage initialized", "auto_migrate", autoMigrate)
	return s, nil
}

// Name returns "postgres".
func (s *PostgresStorage) Name() string { return "postgres" }

// Put upserts the record.
func (s *PostgresStorage) Put(ctx context.Context, record *prospect.CandidateRecord) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(toRow(record)).Error
	if err != nil {
		return fmt.Errorf("postgres put %s: %w", record.ID, err)
	}
	return nil
}

// Get returns the record with the given ID, or nil if absent.
func (s *PostgresStorage) Get(ctx context.Context, id string) (*prospect.CandidateRecord, error) {
	var row prospectRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s: %w", id, err)
	}
	return row.record(), nil
}

// QueryPartition scans the partition index.
func (s *PostgresStorage) QueryPartition(ctx context.Context, partition prospect.Partition) ([]*prospect.CandidateRecord, error) {
	var rows []prospectRow
	err := s.db.WithContext(ctx).
		Where("surface_guid = ? AND candidate_type = ?", partition.SurfaceGUID, string(partition.CandidateType)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("postgres query partition %s: %w", partition, err)
	}

	records := make([]*prospect.CandidateRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].record()
	}
	return records, nil
}

// BatchDelete deletes the IDs in one statement; it is all-or-nothing.
func (s *PostgresStorage) BatchDelete(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	result := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&prospectRow{})
	if result.Error != nil {
		return nil, fmt.Errorf("postgres delete: %w", result.Error)
	}

	s.logger.Debug("deleted prospects", "requested", len(ids), "deleted", result.RowsAffected)
	return nil, nil
}

// Ping checks the database connection.
func (s *PostgresStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *PostgresStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return prospect.NewPersistenceError("postgres", "close", 1, err)
	}
	if err := sqlDB.Close(); err != nil {
		return prospect.NewPersistenceError("postgres", "close", 1, err)
	}
	s.logger.Info("PostgreSQL storage closed")
	return nil
}
