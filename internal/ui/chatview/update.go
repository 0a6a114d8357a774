// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatview

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lecsihq/lecsi-tui/internal/ui/components"
)

// sidebarWidth is the fixed width of the session list pane.
const sidebarWidth = 32

// =============================================================================
// UPDATE
// =============================================================================

// Update handles one event-loop message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case refreshMsg, initDoneMsg, sendDoneMsg:
		m.refreshViewport()
		return m, nil

	case bannerMsg:
		m.banners.Add(msg.kind, msg.text)
		return m, nil

	case components.BannerTickMsg:
		m.banners.Tick()
		return m, components.BannerTickCmd()

	case sessionsMsg:
		if msg.err != nil {
			m.banners.AddError("Could not load chats: " + msg.err.Error())
			return m, nil
		}
		m.sessionList = msg.sessions
		if m.sessionIndex >= len(m.sessionList) {
			m.sessionIndex = 0
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// resize recomputes the layout after a terminal size change.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.Resize(width, height)

	chatWidth := width
	if m.showSidebar {
		chatWidth -= sidebarWidth
	}
	m.markdown.SetWidth(chatWidth - 6)

	vpHeight := height - 7 // header, input, status, padding
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.viewport = viewport.New(chatWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = chatWidth
		m.viewport.Height = vpHeight
	}
	m.input.Width = chatWidth - 6
	m.refreshViewport()
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Escape):
		if m.controller.MentionActive() {
			m.controller.CloseMention()
			m.mentionIndex = 0
			return m, nil
		}
		m.banners.DismissAll()
		return m, nil

	case key.Matches(msg, m.keyMap.NewChat):
		m.controller.StartNewChat()
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keyMap.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		m.resize(m.width, m.height)
		if m.showSidebar {
			return m, m.loadSessionsCmd(false)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.RefreshList):
		return m, m.loadSessionsCmd(true)

	case key.Matches(msg, m.keyMap.Up):
		if m.controller.MentionActive() {
			if m.mentionIndex > 0 {
				m.mentionIndex--
			}
			return m, nil
		}
		if m.showSidebar {
			if m.sessionIndex > 0 {
				m.sessionIndex--
			}
			return m, nil
		}

	case key.Matches(msg, m.keyMap.Down):
		if m.controller.MentionActive() {
			if m.mentionIndex < len(m.controller.MentionResults())-1 {
				m.mentionIndex++
			}
			return m, nil
		}
		if m.showSidebar {
			if m.sessionIndex < len(m.sessionList)-1 {
				m.sessionIndex++
			}
			return m, nil
		}

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.Send):
		return m.handleEnter()
	}

	// Everything else belongs to the input line; the mention state machine
	// sees every change.
	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.controller.OnInputChanged(m.ctx, after)
		m.mentionIndex = 0
	}
	return m, cmd
}

// handleEnter sends the message, or selects the highlighted mention when
// the panel is open.
func (m *Model) handleEnter() (tea.Model, tea.Cmd) {
	if m.controller.MentionActive() {
		if len(m.controller.MentionResults()) > 0 {
			m.input.SetValue(m.controller.SelectMention(m.mentionIndex, m.input.Value()))
			m.input.CursorEnd()
			m.mentionIndex = 0
		}
		return m, nil
	}

	if m.showSidebar && m.input.Value() == "" && m.sessionIndex < len(m.sessionList) {
		chosen := m.sessionList[m.sessionIndex]
		m.showSidebar = false
		m.resize(m.width, m.height)
		return m, m.switchSessionCmd(chosen.ID)
	}

	text := m.input.Value()
	if text == "" {
		return m, nil
	}
	m.input.Reset()
	return m, tea.Batch(m.sendCmd(text), textinput.Blink)
}
