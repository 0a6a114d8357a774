// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/muesli/termenv"
)

// =============================================================================
// THEME TESTS
// =============================================================================

func TestNewThemeHonorsPreference(t *testing.T) {
	if theme := NewTheme("dark"); !theme.IsDark {
		t.Error("dark preference must force a dark theme")
	}
	if theme := NewTheme("light"); theme.IsDark {
		t.Error("light preference must force a light theme")
	}
	// "auto" and unknown values fall back to detection; just verify they
	// build a usable theme.
	if theme := NewTheme("auto"); theme.App.Render("x") == "" {
		t.Error("auto theme did not build")
	}
}

func TestSupportsEmoji(t *testing.T) {
	theme := NewTheme("dark")

	theme.ColorProfile = termenv.Ascii
	if theme.SupportsEmoji() {
		t.Error("ASCII terminals must not get emoji icons")
	}

	theme.ColorProfile = termenv.ANSI256
	if !theme.SupportsEmoji() {
		t.Error("Color terminals should get emoji icons")
	}
}
