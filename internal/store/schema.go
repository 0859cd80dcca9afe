package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the SQLite store.
const schemaV1 = `
-- One row per pipeline run
CREATE TABLE IF NOT EXISTS experiments (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    topology_kind TEXT NOT NULL,
    nodes INTEGER NOT NULL,
    topology TEXT NOT NULL,   -- JSON topology config
    attribute_mode TEXT NOT NULL,
    cascade_config TEXT NOT NULL, -- JSON cascade config
    iterations INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    runs INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_experiments_created ON experiments(created_at);

-- Static metrics; NULL where a metric is undefined (NaN)
CREATE TABLE IF NOT EXISTS metrics (
    experiment_id TEXT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    value REAL,
    PRIMARY KEY (experiment_id, name)
);

-- Per-iteration statistics and cumulative reach
CREATE TABLE IF NOT EXISTS timeseries (
    experiment_id TEXT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
    iteration INTEGER NOT NULL,
    broadcasters INTEGER NOT NULL,
    mean_responses REAL NOT NULL,
    max_responses REAL NOT NULL,
    std_responses REAL NOT NULL,
    total_responses INTEGER NOT NULL,
    total_reached INTEGER,
    proportion_reached REAL,
    newly_reached INTEGER,
    PRIMARY KEY (experiment_id, iteration)
);

-- Ensemble outcomes in run order
CREATE TABLE IF NOT EXISTS outcomes (
    experiment_id TEXT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
    run INTEGER NOT NULL,
    seed INTEGER NOT NULL,
    reach REAL NOT NULL,
    PRIMARY KEY (experiment_id, run)
);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the schema on a fresh database. On an existing one it
// checks integrity and then migrates forward to SchemaVersion.
func InitSchema(ctx context.Context, db *sql.DB) error {
	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		// No schema_version table yet.
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	if version < SchemaVersion {
		if err := migrateSchema(ctx, db, version); err != nil {
			return fmt.Errorf("failed to migrate schema from version %d: %w", version, err)
		}
	}
	return nil
}

func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if err := recordVersion(ctx, tx, SchemaVersion); err != nil {
		return err
	}
	return tx.Commit()
}

func recordVersion(ctx context.Context, tx *sql.Tx, version int) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, version)
	if err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", version, err)
	}
	return nil
}

// migrations maps a target version to the statements that reach it from
// the version below.
var migrations = map[int]string{}

func migrateSchema(ctx context.Context, db *sql.DB, from int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for v := from + 1; v <= SchemaVersion; v++ {
		stmt, ok := migrations[v]
		if !ok {
			return fmt.Errorf("no migration to version %d", v)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration to version %d: %w", v, err)
		}
		if err := recordVersion(ctx, tx, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ValidateIntegrity runs PRAGMA integrity_check and PRAGMA foreign_key_check
// and reports the first problems found.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity_check failed: %s", result)
	}

	rows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer rows.Close()

	var violations []string
	for rows.Next() {
		var table, parent string
		var rowid, fkid sql.NullInt64
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check row: %w", err)
		}
		violations = append(violations, fmt.Sprintf("%s row %d -> %s", table, rowid.Int64, parent))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(violations) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", violations)
	}
	return nil
}
