// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists durable client state between runs.
//
// State lives in a small sqlite database (~/.lecsi/state.db by default) as
// a key/value table. The only key the chat flow relies on is the active
// session id, which lets a restarted client resume its last conversation
// and which gets cleared when the server reports that session gone.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// KeySessionID is the durable key holding the active chat session id.
const KeySessionID = "chatSessionId"

// ErrNoValue indicates the key has no stored value.
var ErrNoValue = errors.New("no stored value")

// schema is applied on open; the table is tiny and append-rarely.
const schema = `
CREATE TABLE IF NOT EXISTS client_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// =============================================================================
// STATE STORE
// =============================================================================

// StateStore is the sqlite-backed key/value store.
type StateStore struct {
	db *sql.DB
}

// Open opens (and if needed creates) the state database at path.
func Open(path string) (*StateStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// One writer at a time; the client never needs more.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	return &StateStore{db: db}, nil
}

// Close releases the database handle.
func (s *StateStore) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key, or ErrNoValue.
func (s *StateStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM client_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoValue
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *StateStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write state %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *StateStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM client_state WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete state %q: %w", key, err)
	}
	return nil
}

// =============================================================================
// SESSION ID HELPERS
// =============================================================================

// SessionID returns the stored active session id, or "" when none is set.
func (s *StateStore) SessionID(ctx context.Context) string {
	id, err := s.Get(ctx, KeySessionID)
	if err != nil {
		return ""
	}
	return id
}

// SetSessionID stores the active session id.
func (s *StateStore) SetSessionID(ctx context.Context, id string) error {
	return s.Set(ctx, KeySessionID, id)
}

// ClearSessionID removes the stored session id.
func (s *StateStore) ClearSessionID(ctx context.Context) error {
	return s.Delete(ctx, KeySessionID)
}
