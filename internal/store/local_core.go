// Package store persists conversation archives and the semantic document
// index in SQLite. Everything the server needs at runtime lives in memory;
// this package is the durable layer behind it, so a restart can warm-start
// the document index and keep an audit trail of past conversations.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"sonagent/internal/logging"
)

// LocalStore is the SQLite-backed persistence layer.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewLocalStore opens (or creates) the SQLite database at the given path and
// brings the schema up to date. Use ":memory:" for an ephemeral store.
func NewLocalStore(path string) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	logging.Store("Opening store at %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// NORMAL is safe under WAL and considerably faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &LocalStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		logging.Get(logging.CategoryStore).Error("Schema migrations failed: %v", err)
		db.Close()
		return nil, err
	}
	if GetSchemaVersion(db) < CurrentSchemaVersion {
		if err := SetSchemaVersion(db, CurrentSchemaVersion); err != nil {
			logging.Get(logging.CategoryStore).Warn("Failed to record schema version: %v", err)
		}
	}

	logging.Store("Store ready (schema v%d)", CurrentSchemaVersion)
	return s, nil
}

// initialize creates the required tables.
func (s *LocalStore) initialize() error {
	turnsTable := `
	CREATE TABLE IF NOT EXISTS conversation_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		agent TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(session_id, agent, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON conversation_turns(session_id);
	CREATE INDEX IF NOT EXISTS idx_turns_agent ON conversation_turns(agent);
	`

	chunksTable := `
	CREATE TABLE IF NOT EXISTS doc_chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		doc_key TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding TEXT,
		metadata TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(doc_key, chunk_index)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc_key ON doc_chunks(doc_key);
	`

	for _, ddl := range []string{turnsTable, chunksTable} {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

// Path returns the database file path.
func (s *LocalStore) Path() string {
	return s.dbPath
}

// Close closes the underlying database.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logging.Store("Closing store at %s", s.dbPath)
	return s.db.Close()
}

// Stats summarizes what the store holds.
type Stats struct {
	Turns         int `json:"turns"`
	Sessions      int `json:"sessions"`
	Chunks        int `json:"chunks"`
	Documents     int `json:"documents"`
	SchemaVersion int `json:"schema_version"`
}

// GetStats counts archived turns and indexed chunks.
func (s *LocalStore) GetStats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM conversation_turns", &st.Turns},
		{"SELECT COUNT(DISTINCT session_id) FROM conversation_turns", &st.Sessions},
		{"SELECT COUNT(*) FROM doc_chunks", &st.Chunks},
		{"SELECT COUNT(DISTINCT doc_key) FROM doc_chunks", &st.Documents},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.sql).Scan(q.dest); err != nil {
			return Stats{}, fmt.Errorf("stats query failed: %w", err)
		}
	}
	st.SchemaVersion = GetSchemaVersion(s.db)
	return st, nil
}
