// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/lecsihq/lecsi-tui/internal/model"
	"github.com/lecsihq/lecsi-tui/internal/ui/styles"
	"github.com/lecsihq/lecsi-tui/internal/util"
)

// =============================================================================
// MENTION PANEL
// =============================================================================

// materialIcons per material type.
var materialIcons = map[model.MaterialType]string{
	model.MaterialCourse:        "🎓",
	model.MaterialFolder:        "📁",
	model.MaterialFile:          "📄",
	model.MaterialQuiz:          "❓",
	model.MaterialFlashcardDeck: "🃏",
}

// asciiMaterialIcons are the fallbacks for terminals without emoji support.
var asciiMaterialIcons = map[model.MaterialType]string{
	model.MaterialCourse:        "[c]",
	model.MaterialFolder:        "[/]",
	model.MaterialFile:          "[f]",
	model.MaterialQuiz:          "[q]",
	model.MaterialFlashcardDeck: "[d]",
}

// materialIcon picks the icon for a material type based on terminal
// capability.
func materialIcon(theme *styles.Theme, t model.MaterialType) string {
	if !theme.SupportsEmoji() {
		return asciiMaterialIcons[t]
	}
	return materialIcons[t]
}

// maxMentionRows caps the panel height.
const maxMentionRows = 8

// RenderMentionPanel renders the "@" search results above the input line.
// selected is the highlighted row index.
func RenderMentionPanel(theme *styles.Theme, results []model.MentionedMaterial, selected, width int) string {
	if len(results) == 0 {
		return theme.MentionPanel.Render(theme.Muted.Render("No matching materials"))
	}

	rows := results
	if len(rows) > maxMentionRows {
		rows = rows[:maxMentionRows]
	}

	var b strings.Builder
	for i, m := range rows {
		line := materialIcon(theme, m.Type) + " " + m.OriginalName
		if width > 12 {
			line = util.TruncateWidth(line, width-6)
		}
		if i == selected {
			b.WriteString(theme.MentionActive.Render(line))
		} else {
			b.WriteString(theme.MentionItem.Render(line))
		}
		if i < len(rows)-1 {
			b.WriteByte('\n')
		}
	}
	return theme.MentionPanel.Render(b.String())
}

// RenderChips renders the attached-material chips row. Each chip shows the
// material's display name; chips are removable through the controller, not
// here.
func RenderChips(theme *styles.Theme, materials []model.MentionedMaterial, width int) string {
	if len(materials) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range materials {
		label := materialIcon(theme, m.Type) + " " + m.DisplayName
		if width > 16 {
			label = util.TruncateWidth(label, width/2)
		}
		b.WriteString(theme.Chip.Render(label))
	}
	return b.String()
}
