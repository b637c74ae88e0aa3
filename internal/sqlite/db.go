// Package sqlite owns the database handle and schema migrations for the
// delegation service. All repositories share one connection pool.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type DB struct {
	conn *sql.DB
	path string
}

// Open opens the SQLite database at path, creating parent directories as
// needed. WAL mode is enabled so readers do not block the writer.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps the PRAGMAs below in effect for every
	// statement and sidesteps SQLITE_BUSY between concurrent writers.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Path() string {
	return db.path
}

func (db *DB) Close() error {
	return db.conn.Close()
}

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
			CREATE TABLE IF NOT EXISTS agent_capabilities (
				capability_id        TEXT PRIMARY KEY,
				agent_id             TEXT NOT NULL,
				agent_name           TEXT NOT NULL,
				agent_type           TEXT NOT NULL,
				skills               TEXT NOT NULL DEFAULT '[]',
				max_concurrent_tasks INTEGER NOT NULL DEFAULT 1,
				current_task_count   INTEGER NOT NULL DEFAULT 0,
				is_available         INTEGER NOT NULL DEFAULT 1,
				created_at           DATETIME NOT NULL,
				updated_at           DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_agent_capabilities_agent_id
				ON agent_capabilities(agent_id);
		`,
	},
	{
		version: 2,
		sql: `
			CREATE TABLE IF NOT EXISTS task_assignments (
				assignment_id   TEXT PRIMARY KEY,
				task_id         TEXT NOT NULL,
				assignee_id     TEXT NOT NULL,
				assignee_type   TEXT NOT NULL,
				status          TEXT NOT NULL,
				assigned_at     DATETIME NOT NULL,
				accepted_at     DATETIME,
				completed_at    DATETIME,
				estimated_hours REAL,
				actual_hours    REAL
			);
			CREATE INDEX IF NOT EXISTS idx_task_assignments_assignee_id
				ON task_assignments(assignee_id);
			CREATE INDEX IF NOT EXISTS idx_task_assignments_task_id
				ON task_assignments(task_id);
		`,
	},
	{
		version: 3,
		sql: `
			CREATE TABLE IF NOT EXISTS push_subscriptions (
				id         TEXT PRIMARY KEY,
				endpoint   TEXT NOT NULL UNIQUE,
				p256dh_key TEXT NOT NULL,
				auth_key   TEXT NOT NULL,
				created_at DATETIME NOT NULL
			);
		`,
	},
}

// Migrate applies all pending schema migrations. It is safe to call on
// every startup.
func (db *DB) Migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version    INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
