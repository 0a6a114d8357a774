// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the Lecsi TUI.
//
// This file implements the transient banner every user-visible error and
// warning funnels through. Banners are non-blocking: they render above the
// input line and auto-dismiss after a fixed delay or on explicit dismissal.
package components

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lecsihq/lecsi-tui/internal/ui/styles"
)

// =============================================================================
// BANNER
// =============================================================================

// BannerKind selects the banner's severity styling.
type BannerKind int

const (
	BannerInfo BannerKind = iota
	BannerWarning
	BannerError
)

// Banner is one transient notification.
type Banner struct {
	ID        int
	Message   string
	Kind      BannerKind
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired reports whether the banner should be dismissed.
func (b *Banner) IsExpired() bool {
	return time.Since(b.CreatedAt) >= b.Duration
}

// =============================================================================
// BANNER MANAGER
// =============================================================================

// BannerManager owns the banner queue. Errors from background goroutines
// land here via Add, so access is locked.
type BannerManager struct {
	mu       sync.Mutex
	banners  []Banner
	nextID   int
	duration time.Duration
}

// NewBannerManager creates a manager with the given auto-dismiss delay.
func NewBannerManager(duration time.Duration) *BannerManager {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return &BannerManager{nextID: 1, duration: duration}
}

// Add queues a banner and returns its id.
func (m *BannerManager) Add(kind BannerKind, message string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := Banner{
		ID:        m.nextID,
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now(),
		Duration:  m.duration,
	}
	m.nextID++
	m.banners = append(m.banners, b)
	return b.ID
}

// AddError queues an error banner.
func (m *BannerManager) AddError(message string) int {
	return m.Add(BannerError, message)
}

// AddWarning queues a warning banner.
func (m *BannerManager) AddWarning(message string) int {
	return m.Add(BannerWarning, message)
}

// Dismiss removes a banner by id.
func (m *BannerManager) Dismiss(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.banners {
		if m.banners[i].ID == id {
			m.banners = append(m.banners[:i], m.banners[i+1:]...)
			return
		}
	}
}

// DismissAll clears the queue (explicit dismissal key).
func (m *BannerManager) DismissAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banners = nil
}

// Tick drops expired banners and returns what remains.
func (m *BannerManager) Tick() []Banner {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := m.banners[:0]
	for _, b := range m.banners {
		if !b.IsExpired() {
			active = append(active, b)
		}
	}
	m.banners = active
	out := make([]Banner, len(m.banners))
	copy(out, m.banners)
	return out
}

// Active returns a copy of the current banners.
func (m *BannerManager) Active() []Banner {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Banner, len(m.banners))
	copy(out, m.banners)
	return out
}

// =============================================================================
// MESSAGES AND COMMANDS
// =============================================================================

// BannerTickMsg drives banner expiry.
type BannerTickMsg struct{ Time time.Time }

// BannerTickCmd ticks the banner queue every 250ms.
func BannerTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return BannerTickMsg{Time: t}
	})
}

// =============================================================================
// RENDERING
// =============================================================================

// RenderBanners renders the banner stack, newest last.
func RenderBanners(theme *styles.Theme, banners []Banner, width int) string {
	if len(banners) == 0 {
		return ""
	}
	var out string
	for i, b := range banners {
		style := theme.BannerInfo
		switch b.Kind {
		case BannerError:
			style = theme.BannerError
		case BannerWarning:
			style = theme.BannerWarning
		}
		if width > 4 {
			style = style.MaxWidth(width - 2)
		}
		if i > 0 {
			out += "\n"
		}
		out += style.Render(b.Message)
	}
	return out
}
