// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatview is the Bubble Tea front end for the chat flow.
//
// The model here is deliberately thin: conversation state lives in the
// chat controller, sessions in the session store, reference state in the
// resolver. The view's job is key handling, layout, and translating the
// controller's update hooks into Bubble Tea messages via Program.Send.
package chatview

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lecsihq/lecsi-tui/internal/chat"
	"github.com/lecsihq/lecsi-tui/internal/model"
	"github.com/lecsihq/lecsi-tui/internal/refcache"
	"github.com/lecsihq/lecsi-tui/internal/resolve"
	"github.com/lecsihq/lecsi-tui/internal/session"
	"github.com/lecsihq/lecsi-tui/internal/ui/components"
	"github.com/lecsihq/lecsi-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// refreshMsg asks for a repaint after background state changed.
type refreshMsg struct{}

// bannerMsg carries a user-visible error or warning.
type bannerMsg struct {
	kind components.BannerKind
	text string
}

// sendDoneMsg signals a completed send pipeline (stream included).
type sendDoneMsg struct{}

// sessionsMsg delivers a session-list fetch.
type sessionsMsg struct {
	sessions []model.ChatSession
	err      error
}

// initDoneMsg signals that session resume finished.
type initDoneMsg struct{}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	theme *styles.Theme

	controller *chat.Controller
	sessions   *session.Store
	resolver   *resolve.Resolver
	cache      *refcache.Cache
	banners    *components.BannerManager
	markdown   *components.MarkdownRenderer

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keyMap   KeyMap

	width  int
	height int
	ready  bool

	// Sidebar session list.
	showSidebar  bool
	sessionList  []model.ChatSession
	sessionIndex int

	// Highlighted row in the mention panel.
	mentionIndex int

	ctx context.Context
}

// New builds the chat view. bannerDuration is how long transient banners
// stay visible (zero means the manager's default). AttachProgram must be
// called before the program runs so background updates can reach the
// event loop.
func New(ctx context.Context, theme *styles.Theme, controller *chat.Controller, sessions *session.Store, resolver *resolve.Resolver, cache *refcache.Cache, bannerDuration time.Duration) *Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about your materials (@ to attach)"
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	return &Model{
		theme:      theme,
		controller: controller,
		sessions:   sessions,
		resolver:   resolver,
		cache:      cache,
		banners:    components.NewBannerManager(bannerDuration),
		markdown:   components.NewMarkdownRenderer(80),
		input:      ti,
		spinner:    sp,
		keyMap:     DefaultKeyMap(),
		ctx:        ctx,
	}
}

// AttachProgram wires the controller's and cache's update hooks to the
// running program. Hooks fire from background goroutines; Program.Send is
// the only safe channel back into the event loop.
func (m *Model) AttachProgram(p *tea.Program) {
	m.controller.SetHooks(
		func() { p.Send(refreshMsg{}) },
		func(msg string) { p.Send(bannerMsg{kind: components.BannerError, text: msg}) },
	)
	m.cache.SetUpdateHook(func() {
		m.resolver.InvalidateMemo()
		p.Send(refreshMsg{})
	})
}

// Init starts the spinner, the banner ticker, and session resume.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		components.BannerTickCmd(),
		m.initCmd(),
		textinput.Blink,
	)
}
