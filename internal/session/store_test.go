// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecsihq/lecsi-tui/internal/api"
	"github.com/lecsihq/lecsi-tui/internal/model"
	"github.com/lecsihq/lecsi-tui/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeBackend is an in-memory Backend with per-call overrides.
type fakeBackend struct {
	mu        sync.Mutex
	sessions  []model.ChatSession
	messages  map[string][]model.ChatMessage
	listCalls int

	listErr     error
	getErr      map[string]error
	messagesErr error
	createErr   error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		messages: make(map[string][]model.ChatMessage),
		getErr:   make(map[string]error),
	}
}

func (b *fakeBackend) CreateSession(ctx context.Context, req api.CreateSessionRequest) (*model.ChatSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return nil, b.createErr
	}
	s := model.ChatSession{
		ID:             "s-" + req.Name,
		Name:           req.Name,
		ContextFileIDs: req.ContextFileIDs,
		CreatedAt:      time.Now(),
	}
	b.sessions = append(b.sessions, s)
	return &s, nil
}

func (b *fakeBackend) ListSessions(ctx context.Context) ([]model.ChatSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	out := make([]model.ChatSession, len(b.sessions))
	copy(out, b.sessions)
	return out, nil
}

func (b *fakeBackend) GetSession(ctx context.Context, id string) (*model.ChatSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.getErr[id]; err != nil {
		return nil, err
	}
	for i := range b.sessions {
		if b.sessions[i].ID == id {
			return &b.sessions[i], nil
		}
	}
	return nil, api.ErrNotFound
}

func (b *fakeBackend) GetMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.messagesErr != nil {
		return nil, b.messagesErr
	}
	return b.messages[sessionID], nil
}

func (b *fakeBackend) listCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

func newTestStore(t *testing.T, backend Backend, ttl time.Duration) (*Store, *storage.StateStore) {
	t.Helper()
	state, err := storage.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })
	return NewStore(backend, state, ttl), state
}

// =============================================================================
// CREATE TESTS
// =============================================================================

func TestCreateWithoutMaterials(t *testing.T) {
	backend := newFakeBackend()
	store, state := newTestStore(t, backend, time.Second)
	ctx := context.Background()

	id, err := store.Create(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "s-New Chat", id)
	assert.Equal(t, id, state.SessionID(ctx), "new session becomes the durable active id")
}

func TestCreateWithMaterials(t *testing.T) {
	backend := newFakeBackend()
	store, _ := newTestStore(t, backend, time.Second)

	materials := []model.MentionedMaterial{
		{ID: "f1", OriginalName: "Biology 101", Type: model.MaterialFile},
		{ID: "f2", OriginalName: "Week 2 Notes", Type: model.MaterialFile},
	}
	id, err := store.Create(context.Background(), materials)
	require.NoError(t, err)
	assert.Equal(t, "s-Chat with Biology 101, Week 2 Notes", id)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.sessions, 1)
	assert.Equal(t, []string{"f1", "f2"}, backend.sessions[0].ContextFileIDs)
}

func TestCreateFailureStoresNothing(t *testing.T) {
	backend := newFakeBackend()
	backend.createErr = errors.New("server unavailable")
	store, state := newTestStore(t, backend, time.Second)
	ctx := context.Background()

	_, err := store.Create(ctx, nil)
	require.Error(t, err)
	assert.Empty(t, state.SessionID(ctx))
}

// =============================================================================
// LIST TESTS
// =============================================================================

func TestListCachesWithinTTL(t *testing.T) {
	backend := newFakeBackend()
	backend.sessions = []model.ChatSession{{ID: "a", Name: "A", CreatedAt: time.Now()}}
	store, _ := newTestStore(t, backend, time.Minute)
	ctx := context.Background()

	_, err := store.List(ctx, false)
	require.NoError(t, err)
	_, err = store.List(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.listCallCount(), "second call within TTL must hit the cache")

	_, err = store.List(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.listCallCount(), "force bypasses the cache")
}

func TestListSortsNewestFirst(t *testing.T) {
	now := time.Now()
	backend := newFakeBackend()
	backend.sessions = []model.ChatSession{
		{ID: "old", CreatedAt: now.Add(-time.Hour)},
		{ID: "new", CreatedAt: now},
		{ID: "undated"}, // zero CreatedAt sorts last
	}
	store, _ := newTestStore(t, backend, time.Minute)

	sessions, err := store.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "new", sessions[0].ID)
	assert.Equal(t, "old", sessions[1].ID)
	assert.Equal(t, "undated", sessions[2].ID)
}

func TestListFailureClearsState(t *testing.T) {
	backend := newFakeBackend()
	backend.sessions = []model.ChatSession{{ID: "a", CreatedAt: time.Now()}}
	store, _ := newTestStore(t, backend, time.Minute)
	ctx := context.Background()

	_, err := store.List(ctx, false)
	require.NoError(t, err)

	backend.mu.Lock()
	backend.listErr = errors.New("network down")
	backend.mu.Unlock()

	_, err = store.List(ctx, true)
	require.Error(t, err)

	// Cache was cleared defensively; recovery refetches.
	backend.mu.Lock()
	backend.listErr = nil
	backend.mu.Unlock()

	sessions, err := store.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Equal(t, 3, backend.listCallCount())
}

// =============================================================================
// VERIFY AND LOAD TESTS
// =============================================================================

// A 404 on the existence check clears every local trace and a later list
// no longer includes the session.
func TestVerifyAndLoadCleansUpOn404(t *testing.T) {
	backend := newFakeBackend()
	backend.sessions = []model.ChatSession{{ID: "gone", CreatedAt: time.Now()}}
	store, state := newTestStore(t, backend, time.Minute)
	ctx := context.Background()

	require.NoError(t, state.SetSessionID(ctx, "gone"))
	_, err := store.List(ctx, false)
	require.NoError(t, err)

	// Server forgets the session.
	backend.mu.Lock()
	backend.sessions = nil
	backend.mu.Unlock()

	_, err = store.VerifyAndLoadMessages(ctx, "gone")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, state.SessionID(ctx), "durable id must be cleared")

	sessions, err := store.List(ctx, false)
	require.NoError(t, err)
	for _, s := range sessions {
		assert.NotEqual(t, "gone", s.ID)
	}
}

func TestVerifyAndLoadKeepsOtherSessionsID(t *testing.T) {
	backend := newFakeBackend()
	store, state := newTestStore(t, backend, time.Minute)
	ctx := context.Background()

	require.NoError(t, state.SetSessionID(ctx, "other"))
	_, err := store.VerifyAndLoadMessages(ctx, "gone")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, "other", state.SessionID(ctx), "cleanup must not clear an unrelated id")
}

// A message-fetch failure on a live session is a warning, never deletion.
func TestVerifyAndLoadMessageFailureIsWarning(t *testing.T) {
	backend := newFakeBackend()
	backend.sessions = []model.ChatSession{{ID: "alive", CreatedAt: time.Now()}}
	backend.messagesErr = errors.New("transient 404 on messages")
	store, state := newTestStore(t, backend, time.Minute)
	ctx := context.Background()

	require.NoError(t, state.SetSessionID(ctx, "alive"))

	result, err := store.VerifyAndLoadMessages(ctx, "alive")
	require.NoError(t, err)
	assert.Empty(t, result.Messages)
	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, "alive", state.SessionID(ctx), "live session must not be deleted")
}

func TestVerifyAndLoadReturnsMessages(t *testing.T) {
	backend := newFakeBackend()
	backend.sessions = []model.ChatSession{{ID: "s1", CreatedAt: time.Now()}}
	backend.messages["s1"] = []model.ChatMessage{
		{ID: "m1", Role: model.RoleUser, Content: "hi"},
		{ID: "m2", Role: model.RoleAI, Content: "hello"},
	}
	store, _ := newTestStore(t, backend, time.Minute)

	result, err := store.VerifyAndLoadMessages(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, result.Warning)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, model.RoleAI, result.Messages[1].Role)
}
