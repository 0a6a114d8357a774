// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// TOKEN STORE TESTS
// =============================================================================

func writeToken(t *testing.T, path, token string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		t.Fatalf("Failed to write token file: %v", err)
	}
}

func TestTokenInitialRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	writeToken(t, path, "abc123")

	s := NewFileTokenStore(path)
	if got := s.Token(); got != "abc123" {
		t.Errorf("Expected abc123, got %q", got)
	}
}

func TestTokenMissingFileIsEmpty(t *testing.T) {
	s := NewFileTokenStore(filepath.Join(t.TempDir(), "absent"))
	if got := s.Token(); got != "" {
		t.Errorf("Expected empty token for missing file, got %q", got)
	}
}

func TestTokenWatchDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	writeToken(t, path, "old")

	s := NewFileTokenStore(path)
	defer s.Close()

	ch := s.Subscribe()
	if err := s.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeToken(t, path, "new")

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("Subscriber never notified of token change")
	}
	if got := s.Token(); got != "new" {
		t.Errorf("Expected new token, got %q", got)
	}
}

// A rename-based replacement (how auth flows actually update the file)
// must be picked up because the watch is on the directory.
func TestTokenWatchSurvivesRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	writeToken(t, path, "old")

	s := NewFileTokenStore(path)
	defer s.Close()

	ch := s.Subscribe()
	if err := s.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	tmp := filepath.Join(dir, "token.tmp")
	writeToken(t, tmp, "renamed")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("Subscriber never notified after rename")
	}
	if got := s.Token(); got != "renamed" {
		t.Errorf("Expected renamed token, got %q", got)
	}
}

func TestTokenNoNotificationWithoutChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	writeToken(t, path, "same")

	s := NewFileTokenStore(path)
	ch := s.Subscribe()

	// Re-reading an unchanged file must not tick subscribers.
	s.reload()

	select {
	case <-ch:
		t.Error("Unexpected notification for unchanged token")
	case <-time.After(50 * time.Millisecond):
	}
}
