// Package store provides the local SQLite record store for the studio
// catalog.
//
// The store is the single authoritative copy of the catalog. It holds four
// tables: courses, instances (FK to courses with cascade delete), the
// append-only activity log, and sync_history. Remote replicas are mirrors
// fed from this store by the autosync scheduler; they never write back.
//
// The database runs in embedded mode using SQLite with WAL for
// concurrency support:
//   - WAL mode: concurrent readers during writes
//   - busy_timeout: 5 seconds
//   - foreign_keys: ON (instances are removed with their course)
//
// Writes to a single record are serialized by the store's transactional
// guarantees; there is no record-level locking above that.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite database connection for the catalog store.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it is created; call InitSchema before
// first use.
//
// The caller MUST call Close() when done to ensure proper cleanup.
func Open(path string) (*DB, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent - safe to call multiple times.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS courses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		daysOfWeek TEXT NOT NULL,
		time TEXT NOT NULL,
		capacity INTEGER NOT NULL,
		duration INTEGER NOT NULL,
		price REAL NOT NULL,
		type TEXT,
		description TEXT,
		roomLocation TEXT,
		instructor TEXT,
		difficulty TEXT,
		syncStatus INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS instances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		courseId INTEGER NOT NULL,
		date TEXT NOT NULL,
		teacher TEXT NOT NULL,
		comments TEXT,
		syncStatus INTEGER NOT NULL DEFAULT 0,
		startTime TEXT,
		endTime TEXT,
		enrolled INTEGER NOT NULL DEFAULT 0,
		capacity INTEGER NOT NULL,
		FOREIGN KEY (courseId) REFERENCES courses(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS activity (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		description TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		relatedId TEXT
	);

	CREATE TABLE IF NOT EXISTS sync_history (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		status TEXT NOT NULL,
		type TEXT NOT NULL,
		"trigger" TEXT,
		duration INTEGER NOT NULL DEFAULT 0,
		retryCount INTEGER NOT NULL DEFAULT 0,
		dataSize INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_instances_course ON instances(courseId);
	CREATE INDEX IF NOT EXISTS idx_instances_date ON instances(date);
	CREATE INDEX IF NOT EXISTS idx_courses_sync ON courses(syncStatus);
	CREATE INDEX IF NOT EXISTS idx_instances_sync ON instances(syncStatus);
	CREATE INDEX IF NOT EXISTS idx_history_timestamp ON sync_history(timestamp);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Reset deletes every record from all four tables in one transaction.
//
// This backs the database management "reset" operation; it is the only
// way activity and sync history rows are ever removed.
func (db *DB) Reset(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Instances first so the cascade doesn't race the course delete.
	for _, table := range []string{"instances", "courses", "activity", "sync_history"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	return nil
}
