package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
// The parent directory of dbPath is created if needed.
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id TEXT PRIMARY KEY,
		camera TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		person_present INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		top_activity TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS observation_activities (
		observation_id TEXT NOT NULL,
		activity TEXT NOT NULL,
		confidence REAL NOT NULL,
		PRIMARY KEY (observation_id, activity),
		FOREIGN KEY (observation_id) REFERENCES observations(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		observation_id TEXT NOT NULL,
		class_id INTEGER NOT NULL,
		score REAL NOT NULL,
		FOREIGN KEY (observation_id) REFERENCES observations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_observations_camera ON observations(camera);
	CREATE INDEX IF NOT EXISTS idx_observations_timestamp ON observations(timestamp);
	CREATE INDEX IF NOT EXISTS idx_observations_top_activity ON observations(top_activity);
	CREATE INDEX IF NOT EXISTS idx_detections_observation_id ON detections(observation_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
