// Package database persists tests, facility blocks and the audit trail in SQLite.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps sql.DB for the scheduler.
type DB struct {
	*sql.DB
	path   string
	logger zerolog.Logger
}

// NewDB opens database at path and runs migrations.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{
		DB:     db,
		path:   path,
		logger: logger.With().Str("component", "database").Logger(),
	}, nil
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

// Ping checks the connection, for readiness probes.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS tests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			requester TEXT NOT NULL DEFAULT '',
			requester_role TEXT NOT NULL DEFAULT '',
			division TEXT NOT NULL DEFAULT '',
			pbs TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'Ongoing',
			archived BOOLEAN NOT NULL DEFAULT 0,
			start_date TEXT,
			end_date TEXT,
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS test_steps (
			test_code TEXT NOT NULL,
			step TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (test_code, step),
			FOREIGN KEY (test_code) REFERENCES tests(code) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS test_operators (
			test_code TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (test_code, position),
			FOREIGN KEY (test_code) REFERENCES tests(code) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS facility_blocks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT UNIQUE NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_tests_archived ON tests(archived)`,
		`CREATE INDEX IF NOT EXISTS idx_tests_dates ON tests(start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_dates ON facility_blocks(start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
