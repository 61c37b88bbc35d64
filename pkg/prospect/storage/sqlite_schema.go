package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the prospect database schema.
const Schema = `
-- Prospect candidates table, keyed by id
CREATE TABLE IF NOT EXISTS prospects (
    id TEXT PRIMARY KEY,
    candidate_source_id TEXT NOT NULL,

    -- Partition
    surface_guid TEXT NOT NULL,
    candidate_type TEXT NOT NULL,

    -- Content
    topic TEXT,
    url TEXT NOT NULL,
    save_count INTEGER NOT NULL DEFAULT 0,
    rank INTEGER NOT NULL DEFAULT 0,

    -- Unix seconds, retention only
    created_at INTEGER NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Secondary index for partition scans
CREATE INDEX IF NOT EXISTS idx_prospects_partition ON prospects(surface_guid, candidate_type);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const prospectColumns = `id, candidate_source_id, surface_guid, candidate_type, topic, url, save_count, rank, created_at`
