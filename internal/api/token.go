// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// FILE TOKEN STORE
// =============================================================================

// pollInterval is the fallback poll rate when the filesystem watcher
// cannot be created.
const pollInterval = 500 * time.Millisecond

// FileTokenStore reads the bearer token from a file owned by the external
// auth flow and notifies subscribers when it changes. Change detection is
// event-driven via fsnotify; polling is used only when no watcher can be
// created on the token's directory.
type FileTokenStore struct {
	path string

	mu          sync.RWMutex
	token       string
	subscribers []chan struct{}

	cancel context.CancelFunc
}

// NewFileTokenStore creates a token store for the given file and performs
// an initial read. A missing file is not an error; the token is simply
// empty until the auth flow writes it.
func NewFileTokenStore(path string) *FileTokenStore {
	s := &FileTokenStore{path: path}
	s.reload()
	return s
}

// Token returns the current bearer token ("" when not authenticated).
func (s *FileTokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Subscribe returns a channel that receives a tick whenever the token
// changes. The channel is buffered; a slow consumer misses intermediate
// changes, not the fact that something changed.
func (s *FileTokenStore) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

// Watch starts change detection and blocks until the watcher goroutine is
// running. Call Close to stop it.
func (s *FileTokenStore) Watch() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Watcher unavailable (e.g. inotify limit reached); poll instead.
		go s.poll(ctx)
		return nil
	}

	// Watch the directory rather than the file: auth flows typically
	// replace the token file via rename, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		go s.poll(ctx)
		return nil
	}

	go s.processEvents(ctx, watcher)
	return nil
}

// Close stops change detection.
func (s *FileTokenStore) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// processEvents handles fsnotify events for the token directory.
func (s *FileTokenStore) processEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				s.reload()
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the next event or Token() call
			// still sees the last known value.
		}
	}
}

// poll is the fallback change detector.
func (s *FileTokenStore) poll(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reload()
		}
	}
}

// reload reads the token file and notifies subscribers on change.
func (s *FileTokenStore) reload() {
	data, err := os.ReadFile(s.path)
	token := ""
	if err == nil {
		token = strings.TrimSpace(string(data))
	}

	s.mu.Lock()
	changed := token != s.token
	s.token = token
	subs := s.subscribers
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
