// Package store persists the endpoint registry and its association with
// chat sessions in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const memoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS endpoints (
	endpoint_id INTEGER PRIMARY KEY AUTOINCREMENT,
	endpoint TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS conversations (
	conversation_id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id INTEGER NOT NULL,
	endpoint_id INTEGER NOT NULL,
	UNIQUE (chat_id, endpoint_id),
	FOREIGN KEY (endpoint_id) REFERENCES endpoints(endpoint_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_conversations_chat_id ON conversations(chat_id);
`

// Store is the SQLite backed endpoint registry.
// It implements both the endpoint store and the conversation association index.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (and creates if needed) the database at path.
// Use ":memory:" for a private in-memory database.
func Open(path string, log *slog.Logger) (*Store, error) {
	dsn := "file:" + path + "?_foreign_keys=on"
	if path == memoryPath {
		dsn = "file::memory:?_foreign_keys=on"
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == memoryPath {
		// every connection to :memory: is a distinct database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, log: log.With("component", "store")}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func scanEndpoints(rows *sql.Rows) ([]Endpoint, error) {
	defer rows.Close()

	endpoints := []Endpoint{}
	for rows.Next() {
		var e Endpoint
		if err := rows.Scan(&e.ID, &e.Address); err != nil {
			return nil, err
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, rows.Err()
}
