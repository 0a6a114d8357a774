// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lecsihq/lecsi-tui/internal/model"
	"github.com/lecsihq/lecsi-tui/internal/refcache"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeBackend serves both the cache and the single-item fallback.
type fakeBackend struct {
	mu          sync.Mutex
	paths       map[string]string
	singleCalls int
	batchEmpty  bool
}

func (f *fakeBackend) GetReferencePath(ctx context.Context, refType, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path, ok := f.paths[refType+":"+id]; ok {
		return path, nil
	}
	return "", errors.New("unknown reference")
}

func (f *fakeBackend) BatchFlashcards(ctx context.Context, ids []string) (map[string]model.Flashcard, error) {
	if f.batchEmpty {
		return map[string]model.Flashcard{}, nil
	}
	out := make(map[string]model.Flashcard, len(ids))
	for _, id := range ids {
		out[id] = model.Flashcard{ID: id, Front: "f", Back: "b"}
	}
	return out, nil
}

func (f *fakeBackend) BatchQuizQuestions(ctx context.Context, ids []string) (map[string]model.QuizQuestion, error) {
	out := make(map[string]model.QuizQuestion, len(ids))
	for _, id := range ids {
		out[id] = model.QuizQuestion{ID: id, Question: "q"}
	}
	return out, nil
}

func (f *fakeBackend) GetFlashcard(ctx context.Context, id string) (*model.Flashcard, error) {
	f.mu.Lock()
	f.singleCalls++
	f.mu.Unlock()
	return &model.Flashcard{ID: id, Front: "single"}, nil
}

func (f *fakeBackend) GetQuizQuestion(ctx context.Context, id string) (*model.QuizQuestion, error) {
	f.mu.Lock()
	f.singleCalls++
	f.mu.Unlock()
	return &model.QuizQuestion{ID: id, Question: "single"}, nil
}

func newTestResolver(backend *fakeBackend) (*Resolver, *refcache.Cache) {
	cache := refcache.New(backend)
	return New(cache, backend), cache
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

// =============================================================================
// TYPE TRANSLATION TESTS
// =============================================================================

func TestBackendType(t *testing.T) {
	tests := []struct {
		in   model.RefType
		want string
	}{
		{model.RefFile, "file"},
		{model.RefFlashcardDeck, "flashcardDeck"},
		{model.RefQuiz, "quiz"},
		{model.RefType("mystery"), "mystery"}, // unknown passes through
	}
	for _, tt := range tests {
		if got := BackendType(tt.in); got != tt.want {
			t.Errorf("BackendType(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

// =============================================================================
// RESOLUTION TESTS
// =============================================================================

func TestResolveNilTagIsPending(t *testing.T) {
	r, _ := newTestResolver(&fakeBackend{})
	ref := r.Resolve(context.Background(), nil)
	if ref.State != StatePending {
		t.Errorf("Expected StatePending, got %v", ref.State)
	}
}

func TestResolveFileReference(t *testing.T) {
	backend := &fakeBackend{paths: map[string]string{"file:f1": "Biology/notes.pdf"}}
	r, cache := newTestResolver(backend)
	ctx := context.Background()
	tag := &model.RefTag{Type: model.RefFile, ID: "f1", Text: "notes"}

	// First pass kicks off the async path fill.
	ref := r.Resolve(ctx, tag)
	if ref.State != StateLoading {
		t.Fatalf("Expected StateLoading first, got %v", ref.State)
	}

	waitFor(t, func() bool {
		_, ok := cache.PathSnapshot("file", "f1")
		return ok
	})

	ref = r.Resolve(ctx, tag)
	if ref.State != StateReady {
		t.Fatalf("Expected StateReady, got %v (path %q)", ref.State, ref.Path)
	}
	if ref.Path != "Biology/notes.pdf" {
		t.Errorf("Unexpected path: %q", ref.Path)
	}
	if ref.Content != nil {
		t.Error("File references carry no content")
	}
}

func TestResolveDeletedSource(t *testing.T) {
	backend := &fakeBackend{paths: map[string]string{
		"file:gone1": "Deleted file",
		"file:gone2": "This file is no longer available",
	}}
	r, cache := newTestResolver(backend)
	ctx := context.Background()

	for _, id := range []string{"gone1", "gone2"} {
		tag := &model.RefTag{Type: model.RefFile, ID: id}
		r.Resolve(ctx, tag)
		waitFor(t, func() bool {
			_, ok := cache.PathSnapshot("file", id)
			return ok
		})
		if ref := r.Resolve(ctx, tag); ref.State != StateDeleted {
			t.Errorf("Expected StateDeleted for %s, got %v (path %q)", id, ref.State, ref.Path)
		}
	}
}

func TestResolveErrorSentinel(t *testing.T) {
	backend := &fakeBackend{} // every path lookup fails
	r, cache := newTestResolver(backend)
	ctx := context.Background()
	tag := &model.RefTag{Type: model.RefQuiz, ID: "q1", QuestionID: "Q1"}

	r.Resolve(ctx, tag)
	waitFor(t, func() bool {
		_, ok := cache.PathSnapshot("quiz", "q1")
		return ok
	})

	ref := r.Resolve(ctx, tag)
	if ref.State != StateError {
		t.Errorf("Expected StateError, got %v (path %q)", ref.State, ref.Path)
	}
}

func TestResolveFlashcardLoadsContent(t *testing.T) {
	backend := &fakeBackend{paths: map[string]string{"flashcardDeck:d1": "Chem/deck"}}
	r, cache := newTestResolver(backend)
	ctx := context.Background()
	tag := &model.RefTag{Type: model.RefFlashcardDeck, ID: "d1", FlashcardID: "c1"}

	// Each render pass drives resolution one step further: path fill,
	// then content fill.
	var ref Reference
	waitFor(t, func() bool {
		ref = r.Resolve(ctx, tag)
		return ref.State == StateReady && ref.Content != nil
	})
	if ref.Content.Flashcard == nil || ref.Content.Flashcard.ID != "c1" {
		t.Errorf("Unexpected content: %+v", ref.Content)
	}
	if _, ok := cache.ContentSnapshot("c1"); !ok {
		t.Error("Content should be cached after resolution")
	}
}

// =============================================================================
// PREFETCH TESTS
// =============================================================================

func TestPrefetchBatchesPerKind(t *testing.T) {
	backend := &fakeBackend{}
	r, cache := newTestResolver(backend)

	r.Prefetch(context.Background(), []model.RefTag{
		{Type: model.RefFlashcardDeck, ID: "d1", FlashcardID: "c1"},
		{Type: model.RefFlashcardDeck, ID: "d2", FlashcardID: "c2"},
		{Type: model.RefQuiz, ID: "q1", QuestionID: "Q1"},
		{Type: model.RefFile, ID: "f1"}, // no content id, skipped
	})

	for _, id := range []string{"c1", "c2", "Q1"} {
		if _, ok := cache.ContentSnapshot(id); !ok {
			t.Errorf("Expected %s prefetched", id)
		}
	}
}

// =============================================================================
// FULL CONTENT TESTS
// =============================================================================

func TestFullContentUsesCacheFirst(t *testing.T) {
	backend := &fakeBackend{}
	r, cache := newTestResolver(backend)
	cache.StoreContent("c1", model.ReferenceContent{Flashcard: &model.Flashcard{ID: "c1", Front: "cached"}})

	content, err := r.FullContent(context.Background(), &model.RefTag{
		Type: model.RefFlashcardDeck, ID: "d1", FlashcardID: "c1",
	})
	if err != nil {
		t.Fatalf("FullContent failed: %v", err)
	}
	if content.Flashcard == nil || content.Flashcard.Front != "cached" {
		t.Errorf("Expected cached content, got %+v", content)
	}
	if backend.singleCalls != 0 {
		t.Errorf("Cache hit must not call the single endpoint, got %d calls", backend.singleCalls)
	}
}

// Only when the batch comes back without the item does the single-item
// endpoint fire, and the result seeds the cache.
func TestFullContentFallsBackToSingleFetch(t *testing.T) {
	backend := &fakeBackend{batchEmpty: true}
	r, cache := newTestResolver(backend)

	content, err := r.FullContent(context.Background(), &model.RefTag{
		Type: model.RefFlashcardDeck, ID: "d1", FlashcardID: "c9",
	})
	if err != nil {
		t.Fatalf("FullContent failed: %v", err)
	}
	if content.Flashcard == nil || content.Flashcard.Front != "single" {
		t.Errorf("Expected single-fetch content, got %+v", content)
	}
	if backend.singleCalls != 1 {
		t.Errorf("Expected exactly 1 single fetch, got %d", backend.singleCalls)
	}
	if _, ok := cache.ContentSnapshot("c9"); !ok {
		t.Error("Single fetch must seed the cache")
	}
}
