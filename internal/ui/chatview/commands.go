// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatview

import (
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// COMMANDS
// =============================================================================

// initCmd resumes the stored session off the event loop.
func (m *Model) initCmd() tea.Cmd {
	return func() tea.Msg {
		m.controller.Init(m.ctx)
		return initDoneMsg{}
	}
}

// sendCmd runs the whole send pipeline, stream included, on a worker
// goroutine. Intermediate repaints arrive through the controller's update
// hook; this message only marks completion.
func (m *Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		m.controller.Send(m.ctx, text)
		return sendDoneMsg{}
	}
}

// loadSessionsCmd fetches the session list for the sidebar.
func (m *Model) loadSessionsCmd(force bool) tea.Cmd {
	return func() tea.Msg {
		sessions, err := m.sessions.List(m.ctx, force)
		return sessionsMsg{sessions: sessions, err: err}
	}
}

// switchSessionCmd activates the session selected in the sidebar.
func (m *Model) switchSessionCmd(id string) tea.Cmd {
	return func() tea.Msg {
		m.controller.SwitchSession(m.ctx, id)
		return refreshMsg{}
	}
}
