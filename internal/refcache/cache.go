// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package refcache memoizes reference lookups for chat rendering.
//
// Two caches live here, both process-wide and append-only for the life of
// the client: display paths keyed by "type:id", and preview content
// (flashcards, quiz questions) keyed by item id. Many message renders hit
// the caches concurrently while a stream keeps adding references, so path
// fetches are deduplicated per key and content is fetched in batches —
// one request per render pass instead of one per reference.
//
// The cache is an injectable service object, not a package global, so
// tests can run against isolated instances.
package refcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/lecsihq/lecsi-tui/internal/model"
)

// =============================================================================
// SENTINELS
// =============================================================================

// PathPending is returned while a path lookup is in flight.
const PathPending = "Loading..."

// pathErrorSentinel formats the permanent failure marker stored in the
// path cache. Storing the failure keeps the UI from retrying forever.
func pathErrorSentinel(refType string) string {
	return fmt.Sprintf("[Error: %s not found]", refType)
}

// =============================================================================
// FETCHER
// =============================================================================

// Fetcher is the backend surface the cache needs. *api.Client satisfies it.
type Fetcher interface {
	GetReferencePath(ctx context.Context, refType, id string) (string, error)
	BatchFlashcards(ctx context.Context, ids []string) (map[string]model.Flashcard, error)
	BatchQuizQuestions(ctx context.Context, ids []string) (map[string]model.QuizQuestion, error)
}

// ContentKind selects which batch endpoint serves a set of content ids.
type ContentKind int

const (
	KindFlashcard ContentKind = iota
	KindQuizQuestion
)

// =============================================================================
// CACHE
// =============================================================================

// Cache memoizes reference paths and preview content.
type Cache struct {
	fetcher Fetcher

	mu           sync.Mutex
	paths        map[string]string // "type:id" -> display path or error sentinel
	pathFetching map[string]bool   // per-key in-flight guard

	content        map[string]model.ReferenceContent
	contentLoading map[string]bool

	// onUpdate is invoked (without the lock held) whenever an async fill
	// lands, so the UI can re-render with the resolved value.
	onUpdate func()
}

// New creates an empty cache backed by the given fetcher.
func New(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher:        fetcher,
		paths:          make(map[string]string),
		pathFetching:   make(map[string]bool),
		content:        make(map[string]model.ReferenceContent),
		contentLoading: make(map[string]bool),
	}
}

// SetUpdateHook registers the callback fired after async fills.
func (c *Cache) SetUpdateHook(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// pathKey builds the cache key for a path entry.
func pathKey(refType, id string) string {
	return refType + ":" + id
}

// =============================================================================
// PATH CACHE
// =============================================================================

// PathSnapshot returns the cached path for type:id without triggering a
// fetch. ok is false when nothing (not even a failure) is cached yet.
func (c *Cache) PathSnapshot(refType, id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path, ok := c.paths[pathKey(refType, id)]
	return path, ok
}

// GetPath returns the display path for type:id, or PathPending while a
// lookup is in flight. The first caller for a key starts an asynchronous
// fetch; concurrent callers for the same key share it via the in-flight
// flag. Lookup failures are stored as a sentinel string so the entry never
// refetches.
func (c *Cache) GetPath(ctx context.Context, refType, id string) string {
	key := pathKey(refType, id)

	c.mu.Lock()
	if path, ok := c.paths[key]; ok {
		c.mu.Unlock()
		return path
	}
	if c.pathFetching[key] {
		c.mu.Unlock()
		return PathPending
	}
	c.pathFetching[key] = true
	c.mu.Unlock()

	go c.fetchPath(ctx, refType, id, key)
	return PathPending
}

// fetchPath resolves one path and stores the result or the error sentinel.
func (c *Cache) fetchPath(ctx context.Context, refType, id, key string) {
	path, err := c.fetcher.GetReferencePath(ctx, refType, id)

	c.mu.Lock()
	if err != nil {
		c.paths[key] = pathErrorSentinel(refType)
	} else {
		c.paths[key] = path
	}
	delete(c.pathFetching, key)
	onUpdate := c.onUpdate
	c.mu.Unlock()

	if onUpdate != nil {
		onUpdate()
	}
}

// =============================================================================
// CONTENT CACHE
// =============================================================================

// ContentSnapshot returns cached preview content for an id.
func (c *Cache) ContentSnapshot(id string) (model.ReferenceContent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.content[id]
	return content, ok
}

// IsContentLoading reports whether a content fetch for id is in flight.
func (c *Cache) IsContentLoading(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contentLoading[id]
}

// GetContentBatch fetches preview content for the given ids in a single
// request, skipping ids already cached. When everything is cached the call
// issues no request at all. Loading flags for the batch are cleared on
// every outcome so a failed batch can be retried by a later render pass.
// Returns the cached-plus-fetched content for all requested ids that
// resolved.
func (c *Cache) GetContentBatch(ctx context.Context, kind ContentKind, ids []string) (map[string]model.ReferenceContent, error) {
	result := make(map[string]model.ReferenceContent)

	c.mu.Lock()
	var missing []string
	for _, id := range ids {
		if content, ok := c.content[id]; ok {
			result[id] = content
			continue
		}
		missing = append(missing, id)
		c.contentLoading[id] = true
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return result, nil
	}

	defer func() {
		c.mu.Lock()
		for _, id := range missing {
			delete(c.contentLoading, id)
		}
		onUpdate := c.onUpdate
		c.mu.Unlock()
		if onUpdate != nil {
			onUpdate()
		}
	}()

	switch kind {
	case KindFlashcard:
		cards, err := c.fetcher.BatchFlashcards(ctx, missing)
		if err != nil {
			return result, err
		}
		c.mu.Lock()
		for id, card := range cards {
			card := card
			entry := model.ReferenceContent{Flashcard: &card}
			c.content[id] = entry
			result[id] = entry
		}
		c.mu.Unlock()

	case KindQuizQuestion:
		questions, err := c.fetcher.BatchQuizQuestions(ctx, missing)
		if err != nil {
			return result, err
		}
		c.mu.Lock()
		for id, q := range questions {
			q := q
			entry := model.ReferenceContent{Question: &q}
			c.content[id] = entry
			result[id] = entry
		}
		c.mu.Unlock()
	}

	return result, nil
}

// GetContent resolves a single id through the batch path. Used for one-off
// resolution when rendering a reference whose content was not pre-fetched.
func (c *Cache) GetContent(ctx context.Context, kind ContentKind, id string) (model.ReferenceContent, bool, error) {
	batch, err := c.GetContentBatch(ctx, kind, []string{id})
	if err != nil {
		return model.ReferenceContent{}, false, err
	}
	content, ok := batch[id]
	return content, ok, nil
}

// StoreContent inserts content directly, bypassing the batch path. Used by
// the single-item fallback fetch.
func (c *Cache) StoreContent(id string, content model.ReferenceContent) {
	c.mu.Lock()
	c.content[id] = content
	c.mu.Unlock()
}

// Flush drops everything. Nothing calls this automatically — the caches
// are stale-forever by design — but it is the hook a future invalidation
// path (and tests) can use.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = make(map[string]string)
	c.pathFetching = make(map[string]bool)
	c.content = make(map[string]model.ReferenceContent)
	c.contentLoading = make(map[string]bool)
}
