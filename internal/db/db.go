package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// DefaultFileName is the manifest file name under the base directory.
const DefaultFileName = "manifest.db"

// Init opens (creating if needed) the SQLite manifest at dbPath.
// The parent directory is created with restricted permissions.
func Init(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("manifest path is required")
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	// Pragmas in the connection string apply to all connections
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: runs and their per-file decisions
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS runs (
		  id              TEXT PRIMARY KEY,
		  input_dir       TEXT NOT NULL,
		  output_dir      TEXT NOT NULL,
		  flatten         INTEGER NOT NULL,
		  keep_comments   INTEGER NOT NULL,
		  markup_count    INTEGER NOT NULL,
		  used_count      INTEGER NOT NULL,
		  unused_count    INTEGER NOT NULL,
		  collision_count INTEGER NOT NULL,
		  files_written   INTEGER NOT NULL,
		  started_at      INTEGER NOT NULL,
		  duration_ms     INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_input_started
		ON runs(input_dir, started_at DESC);

		CREATE TABLE IF NOT EXISTS files (
		  run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		  path     TEXT NOT NULL,
		  out_path TEXT NOT NULL,
		  category TEXT NOT NULL,
		  used     INTEGER NOT NULL,
		  reason   TEXT NOT NULL,
		  PRIMARY KEY (run_id, path)
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
