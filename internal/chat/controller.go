// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat orchestrates the conversation flow.
//
// The controller owns the in-memory message list and drives the send
// pipeline: ensure a session exists, append the optimistic user message,
// strip mention text, partition attached materials into the request
// payload, stream the AI reply into a placeholder message, and reconcile
// with the server's persisted list when the stream ends. It also runs the
// "@" mention search state machine for the input line.
//
// Every stream carries a generation number. Switching sessions or starting
// a new send bumps the generation, and late chunks from an abandoned
// stream are discarded before they can touch state.
package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/lecsihq/lecsi-tui/internal/api"
	"github.com/lecsihq/lecsi-tui/internal/model"
	"github.com/lecsihq/lecsi-tui/internal/session"
	"github.com/lecsihq/lecsi-tui/internal/stream"
	"github.com/lecsihq/lecsi-tui/internal/util"
)

// =============================================================================
// STATES
// =============================================================================

// State is the controller's lifecycle state.
type State int

const (
	// StateNoSession: no active session; one is created lazily on send.
	StateNoSession State = iota
	// StateInitializing: verifying and loading a stored session.
	StateInitializing
	// StateActive: session loaded, ready to send.
	StateActive
	// StateStreaming: a reply is arriving.
	StateStreaming
)

// =============================================================================
// BACKEND
// =============================================================================

// Backend is the API surface the controller uses directly; everything
// session-shaped goes through the session store instead. *api.Client
// satisfies it.
type Backend interface {
	StreamMessage(ctx context.Context, sessionID string, req api.SendMessageRequest) (io.ReadCloser, error)
	SearchMaterials(ctx context.Context, query string) ([]model.MentionedMaterial, error)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller drives a single chat conversation.
type Controller struct {
	backend  Backend
	sessions *session.Store
	think    bool

	mu         sync.Mutex
	state      State
	sessionID  string
	messages   []model.ChatMessage
	selected   []model.MentionedMaterial
	generation int

	mention mentionState

	// onUpdate fires after any state change the UI should repaint for;
	// onError carries user-visible failures to the banner. Both are
	// invoked without the lock held.
	onUpdate func()
	onError  func(msg string)
}

// NewController wires a controller over the backend and session store.
// think enables the backend's extended-reasoning mode on every send.
func NewController(backend Backend, sessions *session.Store, think bool) *Controller {
	return &Controller{
		backend:  backend,
		sessions: sessions,
		think:    think,
		state:    StateNoSession,
	}
}

// SetHooks registers the repaint and error callbacks.
func (c *Controller) SetHooks(onUpdate func(), onError func(string)) {
	c.mu.Lock()
	c.onUpdate = onUpdate
	c.onError = onError
	c.mu.Unlock()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the active session id, or "".
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Messages returns a snapshot of the current message list.
func (c *Controller) Messages() []model.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// notify fires the repaint hook.
func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onUpdate
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// fail surfaces a user-visible error.
func (c *Controller) fail(msg string) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

// =============================================================================
// INIT / SESSION SWITCHING
// =============================================================================

// Init resumes the stored session, if any. A stored id the server no
// longer knows has already been cleaned up by the session store when this
// returns; the controller just lands in StateNoSession. Opening the chat
// with no stored session stays in StateNoSession — sessions are created
// lazily on the first send, never from merely opening the UI.
func (c *Controller) Init(ctx context.Context) {
	storedID := c.sessions.ActiveID(ctx)
	if storedID == "" {
		return
	}

	c.mu.Lock()
	c.state = StateInitializing
	c.sessionID = storedID
	c.mu.Unlock()
	c.notify()

	c.loadMessages(ctx, storedID)
}

// SwitchSession makes another session active and loads its messages. Any
// in-flight stream keeps running but its chunks are discarded by the
// generation guard.
func (c *Controller) SwitchSession(ctx context.Context, sessionID string) {
	c.mu.Lock()
	c.generation++
	c.state = StateInitializing
	c.sessionID = sessionID
	c.messages = nil
	c.mu.Unlock()
	c.notify()

	c.loadMessages(ctx, sessionID)
}

// StartNewChat drops back to the lazy no-session state; the next send
// creates a fresh session.
func (c *Controller) StartNewChat() {
	c.mu.Lock()
	c.generation++
	c.state = StateNoSession
	c.sessionID = ""
	c.messages = nil
	c.selected = nil
	c.mu.Unlock()
	c.notify()
}

// loadMessages verifies the session and loads its history.
func (c *Controller) loadMessages(ctx context.Context, sessionID string) {
	result, err := c.sessions.VerifyAndLoadMessages(ctx, sessionID)

	c.mu.Lock()
	if c.sessionID != sessionID {
		// The user moved on while we were loading.
		c.mu.Unlock()
		return
	}
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.state = StateNoSession
		c.sessionID = ""
		c.messages = nil
		c.mu.Unlock()
		c.fail("That chat no longer exists. Starting fresh.")
	case err != nil:
		c.state = StateNoSession
		c.sessionID = ""
		c.mu.Unlock()
		c.fail("Failed to load chat: " + err.Error())
	default:
		c.state = StateActive
		c.messages = result.Messages
		warning := result.Warning
		c.mu.Unlock()
		if warning != "" {
			c.fail(warning)
		}
	}
	c.notify()
}

// =============================================================================
// SEND
// =============================================================================

// Send posts a user message and streams the reply. Blocks until the
// stream completes, so callers run it on its own goroutine (the TUI wraps
// it in a command).
func (c *Controller) Send(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.mu.Lock()
	if c.state == StateStreaming {
		c.mu.Unlock()
		return
	}
	materials := c.selected
	c.selected = nil
	sessionID := c.sessionID
	c.mu.Unlock()

	// Lazy session creation: only a real send may create one. Creation
	// failure aborts the whole send before anything is appended.
	if sessionID == "" {
		created, err := c.sessions.Create(ctx, materials)
		if err != nil {
			c.mu.Lock()
			c.selected = materials
			c.mu.Unlock()
			c.fail("Could not start a chat: " + err.Error())
			return
		}
		c.mu.Lock()
		c.sessionID = created
		c.state = StateActive
		c.mu.Unlock()
		sessionID = created
	}

	outgoing := StripMentions(text, materials)
	req := buildRequest(outgoing, materials, c.think)

	// Optimistic user message, then the empty placeholder the stream
	// writes into.
	userMsg := model.ChatMessage{
		ID:                uuid.NewString(),
		Content:           outgoing,
		Role:              model.RoleUser,
		SelectedMaterials: materials,
	}
	aiMsg := model.ChatMessage{
		ID:   uuid.NewString(),
		Role: model.RoleAI,
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.messages = append(c.messages, userMsg, aiMsg)
	c.state = StateStreaming
	c.mu.Unlock()
	c.notify()

	body, err := c.backend.StreamMessage(ctx, sessionID, req)
	if err != nil {
		c.mu.Lock()
		if c.generation == gen {
			c.state = StateActive
			// Nothing streamed into the placeholder; drop it so the UI
			// does not show an empty bubble spinning forever.
			for i := range c.messages {
				if c.messages[i].ID == aiMsg.ID {
					c.messages = append(c.messages[:i], c.messages[i+1:]...)
					break
				}
			}
		}
		c.mu.Unlock()
		c.fail("Send failed: " + err.Error())
		c.notify()
		return
	}
	defer body.Close()

	decoder := stream.NewDecoder(func(content string) {
		c.applyDelta(gen, aiMsg.ID, content)
	})

	streamErr := decoder.Run(ctx, body)

	c.mu.Lock()
	stale := c.generation != gen
	if !stale {
		c.state = StateActive
	}
	c.mu.Unlock()
	if stale {
		return
	}

	if streamErr != nil {
		// The partial reply stays on screen; only the error is surfaced.
		c.fail("Stream interrupted: " + streamErr.Error())
		c.notify()
		return
	}

	c.reconcile(ctx, gen, sessionID)
}

// applyDelta replaces the placeholder's content with the full accumulated
// buffer. Chunks from a superseded stream, or for a message that no longer
// exists in the current list, are dropped.
func (c *Controller) applyDelta(gen int, messageID, content string) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	applied := false
	for i := range c.messages {
		if c.messages[i].ID == messageID {
			c.messages[i].Content = content
			applied = true
			break
		}
	}
	c.mu.Unlock()
	if applied {
		c.notify()
	}
}

// reconcileRetryDelay is how long reconciliation waits before its one
// re-fetch when the server list comes back empty.
var reconcileRetryDelay = 400 * time.Millisecond

// reconcile replaces the optimistic message list with the server's
// persisted version. This is what guarantees convergence to durable state
// even when the stream ended badly halfway. An empty server list while a
// conversation is visible means the write has not landed yet; one delayed
// re-fetch covers that window, and if the list is still empty the
// optimistic view stays rather than blanking the screen.
func (c *Controller) reconcile(ctx context.Context, gen int, sessionID string) {
	for attempt := 0; attempt < 2; attempt++ {
		result, err := c.sessions.VerifyAndLoadMessages(ctx, sessionID)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				c.mu.Lock()
				if c.generation == gen {
					c.state = StateNoSession
					c.sessionID = ""
					c.messages = nil
				}
				c.mu.Unlock()
				c.fail("That chat no longer exists.")
				c.notify()
			}
			// Other errors keep the optimistic view; it is already
			// complete from the stream.
			return
		}
		if result.Warning != "" {
			return
		}

		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return
		}
		if len(result.Messages) > 0 || len(c.messages) == 0 {
			c.messages = result.Messages
			c.mu.Unlock()
			c.notify()
			return
		}
		c.mu.Unlock()

		if attempt == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconcileRetryDelay):
			}
		}
	}
	c.notify()
}

// =============================================================================
// OUTGOING REQUEST SHAPING
// =============================================================================

// StripMentions removes "@mention" occurrences for the attached materials
// from the outgoing text, matching both the display name and the
// underscored original name, then collapses leftover runs of whitespace.
// Mentions travel as structured material ids, not as text. Text and names
// are NFC-normalized before matching so accented material names match
// regardless of how the terminal composed them.
func StripMentions(text string, materials []model.MentionedMaterial) string {
	text = norm.NFC.String(text)
	for _, m := range materials {
		display := norm.NFC.String(m.DisplayName)
		if display != "" {
			text = strings.ReplaceAll(text, "@"+display, "")
		}
		underscored := strings.ReplaceAll(norm.NFC.String(m.OriginalName), " ", "_")
		if underscored != "" && underscored != display {
			text = strings.ReplaceAll(text, "@"+underscored, "")
		}
	}
	return util.CollapseSpaces(text)
}

// buildRequest partitions materials by type into the payload's id lists.
// CourseID is set only when a course-type material was explicitly
// selected, never inferred from the other materials' parent course. The
// id lists start as empty slices so they marshal as [] rather than null.
func buildRequest(content string, materials []model.MentionedMaterial, think bool) api.SendMessageRequest {
	req := api.SendMessageRequest{
		Content:          content,
		FlashCardDeckIDs: []string{},
		QuizIDs:          []string{},
		FileIDs:          []string{},
		FolderIDs:        []string{},
		ThinkMode:        think,
	}
	for _, m := range materials {
		switch m.Type {
		case model.MaterialFile:
			req.FileIDs = append(req.FileIDs, m.ID)
		case model.MaterialFolder:
			req.FolderIDs = append(req.FolderIDs, m.ID)
		case model.MaterialQuiz:
			req.QuizIDs = append(req.QuizIDs, m.ID)
		case model.MaterialFlashcardDeck:
			req.FlashCardDeckIDs = append(req.FlashCardDeckIDs, m.ID)
		case model.MaterialCourse:
			req.CourseID = m.ID
		}
	}
	return req
}

// =============================================================================
// MATERIALS
// =============================================================================

// SelectedMaterials returns the materials attached to the next send.
func (c *Controller) SelectedMaterials() []model.MentionedMaterial {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.MentionedMaterial, len(c.selected))
	copy(out, c.selected)
	return out
}

// RemoveMaterial detaches the material at index i.
func (c *Controller) RemoveMaterial(i int) {
	c.mu.Lock()
	if i >= 0 && i < len(c.selected) {
		c.selected = append(c.selected[:i], c.selected[i+1:]...)
	}
	c.mu.Unlock()
	c.notify()
}
