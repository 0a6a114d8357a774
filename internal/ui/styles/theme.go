// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application. It detects the
// terminal's color capability once at startup.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// ==========================================================================
	// LAYOUT
	// ==========================================================================

	App       lipgloss.Style
	Header    lipgloss.Style
	Sidebar   lipgloss.Style
	StatusBar lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserBubble lipgloss.Style
	AIBubble   lipgloss.Style

	// ==========================================================================
	// REFERENCES
	// ==========================================================================

	RefResolved lipgloss.Style
	RefPending  lipgloss.Style
	RefDeleted  lipgloss.Style
	RefError    lipgloss.Style
	RefCard     lipgloss.Style

	// ==========================================================================
	// INPUT AND MENTIONS
	// ==========================================================================

	InputContainer lipgloss.Style
	Chip           lipgloss.Style
	MentionPanel   lipgloss.Style
	MentionItem    lipgloss.Style
	MentionActive  lipgloss.Style

	// ==========================================================================
	// BANNER
	// ==========================================================================

	BannerError   lipgloss.Style
	BannerWarning lipgloss.Style
	BannerInfo    lipgloss.Style

	Spinner lipgloss.Style
	Muted   lipgloss.Style
}

// NewTheme builds the theme for the current terminal. preference is the
// configured theme ("dark", "light" or "auto"); "auto" detects the
// terminal background, the other two force it. The choice is pushed into
// the lipgloss renderer so every adaptive color resolves against it.
func NewTheme(preference string) *Theme {
	t := &Theme{
		ColorProfile: termenv.ColorProfile(),
	}
	switch preference {
	case "dark":
		t.IsDark = true
	case "light":
		t.IsDark = false
	default:
		t.IsDark = lipgloss.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(t.IsDark)

	t.App = lipgloss.NewStyle().Padding(0, 1)

	t.Header = lipgloss.NewStyle().
		Foreground(Indigo).
		Bold(true).
		Padding(0, 1)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)

	t.AIBubble = lipgloss.NewStyle().
		Foreground(AIBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AIBubbleBorder).
		Padding(0, 1)

	t.RefResolved = lipgloss.NewStyle().
		Foreground(Emerald).
		Underline(true)

	t.RefPending = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	t.RefDeleted = lipgloss.NewStyle().
		Foreground(TextMuted).
		Strikethrough(true)

	t.RefError = lipgloss.NewStyle().
		Foreground(Rose)

	t.RefCard = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1).
		MarginLeft(2)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.Chip = lipgloss.NewStyle().
		Foreground(Indigo).
		Background(SurfaceDim).
		Padding(0, 1).
		MarginRight(1)

	t.MentionPanel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Indigo).
		Padding(0, 1)

	t.MentionItem = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.MentionActive = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(Overlay).
		Bold(true)

	t.BannerError = lipgloss.NewStyle().
		Foreground(Rose).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)

	t.BannerWarning = lipgloss.NewStyle().
		Foreground(Amber).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Amber).
		Padding(0, 1)

	t.BannerInfo = lipgloss.NewStyle().
		Foreground(Cyan).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(0, 1)

	t.Spinner = lipgloss.NewStyle().Foreground(Indigo)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)

	return t
}

// Resize records the terminal dimensions.
func (t *Theme) Resize(width, height int) {
	t.Width = width
	t.Height = height
}

// SupportsEmoji reports whether the terminal can render emoji icons.
// ASCII-only terminals get plain-text fallbacks.
func (t *Theme) SupportsEmoji() bool {
	return t.ColorProfile != termenv.Ascii
}
