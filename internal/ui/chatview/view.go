// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatview

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lecsihq/lecsi-tui/internal/chat"
	"github.com/lecsihq/lecsi-tui/internal/model"
	"github.com/lecsihq/lecsi-tui/internal/segment"
	"github.com/lecsihq/lecsi-tui/internal/ui/components"
	"github.com/lecsihq/lecsi-tui/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full screen.
func (m *Model) View() string {
	if !m.ready {
		return "Starting..."
	}

	var sections []string
	sections = append(sections, m.theme.Header.Render("Lecsi — study chat"))

	body := m.viewport.View()
	if m.showSidebar {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), body)
	}
	sections = append(sections, body)

	if banners := m.banners.Active(); len(banners) > 0 {
		sections = append(sections, components.RenderBanners(m.theme, banners, m.width))
	}

	if m.controller.MentionActive() {
		sections = append(sections, components.RenderMentionPanel(
			m.theme, m.controller.MentionResults(), m.mentionIndex, m.width))
	}

	if chips := components.RenderChips(m.theme, m.controller.SelectedMaterials(), m.width); chips != "" {
		sections = append(sections, chips)
	}

	sections = append(sections, m.theme.InputContainer.Render(m.input.View()))
	sections = append(sections, m.renderStatusBar())

	return m.theme.App.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// renderStatusBar shows state and the key hints.
func (m *Model) renderStatusBar() string {
	state := "no chat"
	switch m.controller.State() {
	case chat.StateInitializing:
		state = m.spinner.View() + " loading"
	case chat.StateActive:
		state = "ready"
	case chat.StateStreaming:
		state = m.spinner.View() + " thinking"
	}
	hints := "ctrl+n new · ctrl+s sessions · ctrl+c quit"
	return m.theme.StatusBar.Render(state + "  " + m.theme.Muted.Render(hints))
}

// renderSidebar renders the session list pane.
func (m *Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString("Chats\n")
	if len(m.sessionList) == 0 {
		b.WriteString(m.theme.Muted.Render("(none yet)"))
	}
	activeID := m.controller.SessionID()
	for i, s := range m.sessionList {
		name := util.TruncateWidth(s.Name, sidebarWidth-6)
		switch {
		case i == m.sessionIndex:
			name = m.theme.MentionActive.Render("> " + name)
		case s.ID == activeID:
			name = m.theme.RefResolved.Render("• " + name)
		default:
			name = m.theme.MentionItem.Render("  " + name)
		}
		b.WriteString(name)
		if i < len(m.sessionList)-1 {
			b.WriteByte('\n')
		}
	}
	return m.theme.Sidebar.
		Width(sidebarWidth - 2).
		Height(m.viewport.Height).
		Render(b.String())
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshViewport re-renders the transcript and pins the view to the
// bottom. Called on every content update; the parse is cheap at chat
// scale and recomputing from the full buffer keeps segments consistent
// with the latest stream state.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	messages := m.controller.Messages()
	if len(messages) == 0 {
		m.viewport.SetContent(m.theme.Muted.Render(
			"\n  Start a conversation. Use @ to attach courses, files, quizzes, or decks."))
		return
	}

	var b strings.Builder
	for i := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(&messages[i]))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// renderMessage renders one message bubble, resolving any references in
// its content.
func (m *Model) renderMessage(msg *model.ChatMessage) string {
	width := m.viewport.Width - 4

	if msg.Role == model.RoleUser {
		body := msg.Content
		if chips := components.RenderChips(m.theme, msg.SelectedMaterials, width); chips != "" {
			body = chips + "\n" + body
		}
		return m.theme.UserBubble.MaxWidth(width).Render(body)
	}

	if msg.Content == "" {
		return m.theme.AIBubble.MaxWidth(width).Render(m.spinner.View())
	}

	segments := segment.Parse(msg.Content)
	var b strings.Builder
	var cards []string
	for _, seg := range segments {
		if seg.Kind == segment.KindText {
			b.WriteString(m.markdown.Render(seg.Content))
			continue
		}
		ref := m.resolver.Resolve(m.ctx, seg.Tag)
		b.WriteString(components.RenderReference(m.theme, ref, width))
		if card := components.RenderReferenceCard(m.theme, ref, width); card != "" {
			cards = append(cards, card)
		}
	}
	for _, card := range cards {
		b.WriteString("\n")
		b.WriteString(card)
	}
	return m.theme.AIBubble.MaxWidth(width).Render(b.String())
}
