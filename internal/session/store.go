// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session manages chat sessions against the backend.
//
// The store is the single owner of the session list and of the durable
// active-session id. It caches list results briefly, coalesces concurrent
// fetches, and repairs stale local state when the server reports a session
// gone: a 404 on the existence check clears the durable id and the cached
// list entry, while a mere message-fetch failure on a live session is
// downgraded to "empty with a warning" so transient errors never delete a
// valid session.
package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lecsihq/lecsi-tui/internal/api"
	"github.com/lecsihq/lecsi-tui/internal/model"
	"github.com/lecsihq/lecsi-tui/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrSessionNotFound indicates the server no longer knows the session.
// Local references to it have already been cleaned up when this returns.
var ErrSessionNotFound = errors.New("session not found")

// =============================================================================
// BACKEND
// =============================================================================

// Backend is the API surface the store needs. *api.Client satisfies it;
// tests use a mock.
type Backend interface {
	CreateSession(ctx context.Context, req api.CreateSessionRequest) (*model.ChatSession, error)
	ListSessions(ctx context.Context) ([]model.ChatSession, error)
	GetSession(ctx context.Context, id string) (*model.ChatSession, error)
	GetMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
}

// =============================================================================
// STORE
// =============================================================================

// Store manages chat sessions.
type Store struct {
	backend Backend
	state   *storage.StateStore
	ttl     time.Duration

	mu        sync.Mutex
	cached    []model.ChatSession
	fetchedAt time.Time
	fetching  bool
}

// NewStore creates a session store with the given list-cache TTL.
func NewStore(backend Backend, state *storage.StateStore, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Store{
		backend: backend,
		state:   state,
		ttl:     ttl,
	}
}

// ActiveID returns the durable active session id, or "".
func (s *Store) ActiveID(ctx context.Context) string {
	return s.state.SessionID(ctx)
}

// =============================================================================
// CREATE
// =============================================================================

// Create creates a new session. With materials attached the session is
// named after them ("Chat with A, B") and carries their ids as context;
// otherwise it is a plain "New Chat". On success the new id becomes the
// durable active session id. On failure nothing is stored.
func (s *Store) Create(ctx context.Context, materials []model.MentionedMaterial) (string, error) {
	req := api.CreateSessionRequest{Name: "New Chat"}
	if len(materials) > 0 {
		names := make([]string, 0, len(materials))
		ids := make([]string, 0, len(materials))
		for _, m := range materials {
			names = append(names, m.OriginalName)
			ids = append(ids, m.ID)
		}
		req.Name = "Chat with " + strings.Join(names, ", ")
		req.ContextFileIDs = ids
	}

	created, err := s.backend.CreateSession(ctx, req)
	if err != nil {
		return "", err
	}

	if err := s.state.SetSessionID(ctx, created.ID); err != nil {
		// The session exists server-side; losing the durable id only
		// costs resumption after restart, so surface but keep the id.
		return created.ID, err
	}

	s.mu.Lock()
	s.cached = append([]model.ChatSession{*created}, s.cached...)
	s.mu.Unlock()

	return created.ID, nil
}

// =============================================================================
// LIST
// =============================================================================

// List returns all sessions, newest first. Results are cached for the
// store's TTL; force bypasses the cache. A call arriving while a fetch is
// already in flight short-circuits and returns the previous result rather
// than issuing a duplicate request. A network failure clears all cached
// session state — an empty list is safer than a stale one.
func (s *Store) List(ctx context.Context, force bool) ([]model.ChatSession, error) {
	s.mu.Lock()
	if s.fetching {
		prev := cloneSessions(s.cached)
		s.mu.Unlock()
		return prev, nil
	}
	if !force && !s.fetchedAt.IsZero() && time.Since(s.fetchedAt) < s.ttl {
		fresh := cloneSessions(s.cached)
		s.mu.Unlock()
		return fresh, nil
	}
	s.fetching = true
	s.mu.Unlock()

	sessions, err := s.backend.ListSessions(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching = false
	if err != nil {
		s.cached = nil
		s.fetchedAt = time.Time{}
		return nil, err
	}

	sortSessions(sessions)
	s.cached = sessions
	s.fetchedAt = time.Now()
	return cloneSessions(s.cached), nil
}

// sortSessions orders newest first; sessions without a created timestamp
// sort as epoch zero (oldest).
func sortSessions(sessions []model.ChatSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}

// cloneSessions copies the cached slice so callers cannot mutate it.
func cloneSessions(sessions []model.ChatSession) []model.ChatSession {
	out := make([]model.ChatSession, len(sessions))
	copy(out, sessions)
	return out
}

// =============================================================================
// VERIFY AND LOAD
// =============================================================================

// LoadResult is the outcome of a successful VerifyAndLoadMessages call.
type LoadResult struct {
	Messages []model.ChatMessage

	// Warning is set when the session exists but its messages could not
	// be fetched; Messages is empty in that case.
	Warning string
}

// VerifyAndLoadMessages checks that a session still exists before loading
// its messages. A 404 on the existence check means the local reference is
// stale: the durable id and the cached list entry are cleared and
// ErrSessionNotFound is returned. A failure on the message fetch of a
// session that does exist is not grounds for deletion — it yields an empty
// result with a warning instead.
func (s *Store) VerifyAndLoadMessages(ctx context.Context, sessionID string) (*LoadResult, error) {
	if _, err := s.backend.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			s.cleanupStale(ctx, sessionID)
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	messages, err := s.backend.GetMessages(ctx, sessionID)
	if err != nil {
		return &LoadResult{
			Warning: "Messages for this chat are currently unavailable.",
		}, nil
	}

	return &LoadResult{Messages: messages}, nil
}

// cleanupStale removes every local trace of a session the server no
// longer has: the durable id (if it points at this session) and the
// cached list entry.
func (s *Store) cleanupStale(ctx context.Context, sessionID string) {
	if s.state.SessionID(ctx) == sessionID {
		_ = s.state.ClearSessionID(ctx)
	}

	s.mu.Lock()
	kept := s.cached[:0]
	for _, session := range s.cached {
		if session.ID != sessionID {
			kept = append(kept, session)
		}
	}
	s.cached = kept
	s.mu.Unlock()
}
