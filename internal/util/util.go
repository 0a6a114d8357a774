// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the lecsi client.
package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// TruncateWidth truncates a string to a maximum display width, appending
// an ellipsis when something was cut. Width is measured in terminal
// columns, so CJK and other double-width characters count as 2.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 1 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "…")
}

// CollapseSpaces normalizes all runs of whitespace to single spaces and
// trims the ends. Used after removing mention text from outgoing messages
// so the stripped gaps do not leave double spaces behind.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
