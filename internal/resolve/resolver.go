// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resolve turns parsed reference segments into renderable state.
//
// The resolver sits between the segment parser and the UI: given a
// reference tag it produces the display path, the load state, and (for
// flashcard and quiz references) the preview content, consulting the
// reference cache and triggering fills for anything missing. It holds a
// small per-resolver path memo so a render pass that touches the same
// reference many times hits the cache lock once.
package resolve

import (
	"context"
	"strings"
	"sync"

	"github.com/lecsihq/lecsi-tui/internal/model"
	"github.com/lecsihq/lecsi-tui/internal/refcache"
)

// =============================================================================
// TYPE TRANSLATION
// =============================================================================

// backendTypes maps a reference's logical type to the key vocabulary the
// backend path endpoint expects. The two vocabularies are identical today,
// but the boundary is kept explicit so a server-side rename is a one-line
// change here instead of a scavenger hunt.
var backendTypes = map[model.RefType]string{
	model.RefFile:          "file",
	model.RefFlashcardDeck: "flashcardDeck",
	model.RefQuiz:          "quiz",
}

// BackendType translates a logical reference type for the wire. Unknown
// types pass through unchanged so an unrecognized tag still renders a
// best-effort path instead of nothing.
func BackendType(t model.RefType) string {
	if bt, ok := backendTypes[t]; ok {
		return bt
	}
	return string(t)
}

// =============================================================================
// RESOLVED STATE
// =============================================================================

// State describes how far along a reference's resolution is.
type State int

const (
	// StatePending: the tag itself has not finished streaming in.
	StatePending State = iota
	// StateLoading: path or content fetch in flight.
	StateLoading
	// StateReady: path (and content, where applicable) resolved.
	StateReady
	// StateDeleted: the referenced source no longer exists server-side.
	StateDeleted
	// StateError: resolution failed permanently.
	StateError
)

// Reference is the renderable form of one reference segment.
type Reference struct {
	State State

	// Path is the display path, the PathPending literal while loading, or
	// the error sentinel on permanent failure.
	Path string

	// Tag is the parsed tag; nil when State is StatePending.
	Tag *model.RefTag

	// Content carries the flashcard or quiz-question preview once loaded.
	Content *model.ReferenceContent
}

// DeletedLabel is what renderers show for a deleted source.
const DeletedLabel = "content no longer available"

// isDeletedPath reports whether a resolved path names a deleted source.
func isDeletedPath(path string) bool {
	return strings.Contains(path, "Deleted") ||
		strings.Contains(path, "no longer available")
}

// =============================================================================
// RESOLVER
// =============================================================================

// SingleFetcher is the fallback surface for user-triggered full-content
// lookups. *api.Client satisfies it.
type SingleFetcher interface {
	GetFlashcard(ctx context.Context, id string) (*model.Flashcard, error)
	GetQuizQuestion(ctx context.Context, id string) (*model.QuizQuestion, error)
}

// Resolver resolves reference segments against the cache.
type Resolver struct {
	cache  *refcache.Cache
	single SingleFetcher

	mu    sync.Mutex
	paths map[string]string // render-pass memo over the cache
}

// New creates a resolver over the given cache and fallback fetcher.
func New(cache *refcache.Cache, single SingleFetcher) *Resolver {
	return &Resolver{
		cache:  cache,
		single: single,
		paths:  make(map[string]string),
	}
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Resolve produces renderable state for one reference tag. A nil tag is a
// still-streaming reference and resolves to StatePending. Missing paths
// and content trigger asynchronous cache fills; the caller re-resolves on
// the cache's update hook.
func (r *Resolver) Resolve(ctx context.Context, tag *model.RefTag) Reference {
	if tag == nil {
		return Reference{State: StatePending, Path: refcache.PathPending}
	}

	path := r.resolvePath(ctx, tag)

	switch {
	case isDeletedPath(path):
		// No content fetch for a deleted source; there is nothing to show.
		return Reference{State: StateDeleted, Path: path, Tag: tag}
	case strings.HasPrefix(path, "[Error:"):
		return Reference{State: StateError, Path: path, Tag: tag}
	case path == refcache.PathPending:
		return Reference{State: StateLoading, Path: path, Tag: tag}
	}

	ref := Reference{State: StateReady, Path: path, Tag: tag}

	// Flashcard and quiz references also carry preview content.
	if id := tag.ContentID(); id != "" {
		content, ok := r.resolveContent(ctx, tag.Type, id)
		if !ok {
			ref.State = StateLoading
			return ref
		}
		ref.Content = &content
	}

	return ref
}

// resolvePath returns the display path for a tag, consulting the memo,
// then the cache snapshot, then triggering an async fetch.
func (r *Resolver) resolvePath(ctx context.Context, tag *model.RefTag) string {
	backendType := BackendType(tag.Type)
	key := backendType + ":" + tag.ID

	r.mu.Lock()
	if path, ok := r.paths[key]; ok {
		r.mu.Unlock()
		return path
	}
	r.mu.Unlock()

	if path, ok := r.cache.PathSnapshot(backendType, tag.ID); ok {
		r.mu.Lock()
		r.paths[key] = path
		r.mu.Unlock()
		return path
	}

	// Not cached: GetPath starts the fill and hands back the pending
	// literal. The pending value is deliberately not memoized.
	return r.cache.GetPath(ctx, backendType, tag.ID)
}

// resolveContent returns cached preview content for an id, triggering a
// batch fill when it is neither cached nor already loading.
func (r *Resolver) resolveContent(ctx context.Context, refType model.RefType, id string) (model.ReferenceContent, bool) {
	if content, ok := r.cache.ContentSnapshot(id); ok {
		return content, true
	}
	if r.cache.IsContentLoading(id) {
		return model.ReferenceContent{}, false
	}

	kind := refcache.KindFlashcard
	if refType == model.RefQuiz {
		kind = refcache.KindQuizQuestion
	}
	go func() {
		_, _ = r.cache.GetContentBatch(ctx, kind, []string{id})
	}()
	return model.ReferenceContent{}, false
}

// Prefetch warms the content cache for every resolved reference in a
// message, batched per kind so a message citing ten flashcards costs one
// request, not ten.
func (r *Resolver) Prefetch(ctx context.Context, tags []model.RefTag) {
	var cardIDs, questionIDs []string
	for i := range tags {
		id := tags[i].ContentID()
		if id == "" {
			continue
		}
		if tags[i].Type == model.RefQuiz {
			questionIDs = append(questionIDs, id)
		} else {
			cardIDs = append(cardIDs, id)
		}
	}
	if len(cardIDs) > 0 {
		_, _ = r.cache.GetContentBatch(ctx, refcache.KindFlashcard, cardIDs)
	}
	if len(questionIDs) > 0 {
		_, _ = r.cache.GetContentBatch(ctx, refcache.KindQuizQuestion, questionIDs)
	}
}

// InvalidateMemo clears the per-resolver path memo. Called when the cache
// fires its update hook so the next render pass sees fresh values.
func (r *Resolver) InvalidateMemo() {
	r.mu.Lock()
	r.paths = make(map[string]string)
	r.mu.Unlock()
}

// =============================================================================
// FULL CONTENT
// =============================================================================

// FullContent serves the user-triggered "show full content" action. The
// cache is consulted first, then refreshed through the batch path, and
// only if the batch comes back without the item does it fall back to the
// individual endpoints. User-initiated and rare, so the single fetch is
// acceptable here and nowhere else.
func (r *Resolver) FullContent(ctx context.Context, tag *model.RefTag) (model.ReferenceContent, error) {
	id := tag.ContentID()
	if id == "" {
		return model.ReferenceContent{}, nil
	}

	if content, ok := r.cache.ContentSnapshot(id); ok {
		return content, nil
	}

	kind := refcache.KindFlashcard
	if tag.Type == model.RefQuiz {
		kind = refcache.KindQuizQuestion
	}
	content, ok, err := r.cache.GetContent(ctx, kind, id)
	if err == nil && ok {
		return content, nil
	}

	// Batch path came up empty: last resort, hit the single-item endpoint
	// and seed the cache so the next lookup is free.
	switch kind {
	case refcache.KindQuizQuestion:
		q, err := r.single.GetQuizQuestion(ctx, id)
		if err != nil {
			return model.ReferenceContent{}, err
		}
		content = model.ReferenceContent{Question: q}
	default:
		card, err := r.single.GetFlashcard(ctx, id)
		if err != nil {
			return model.ReferenceContent{}, err
		}
		content = model.ReferenceContent{Flashcard: card}
	}
	r.cache.StoreContent(id, content)
	return content, nil
}
