// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"regexp"
	"strings"

	"github.com/lecsihq/lecsi-tui/internal/model"
	"github.com/lecsihq/lecsi-tui/internal/resolve"
	"github.com/lecsihq/lecsi-tui/internal/ui/styles"
	"github.com/lecsihq/lecsi-tui/internal/util"
)

// =============================================================================
// REFERENCE RENDERING
// =============================================================================

// refIcons per reference type; keyed by the logical type string.
var refIcons = map[model.RefType]string{
	model.RefFile:          "📄",
	model.RefFlashcardDeck: "🃏",
	model.RefQuiz:          "❓",
}

// asciiRefIcons are the fallbacks for terminals without emoji support.
var asciiRefIcons = map[model.RefType]string{
	model.RefFile:          "[f]",
	model.RefFlashcardDeck: "[d]",
	model.RefQuiz:          "[q]",
}

// refIcon picks the icon for a reference type based on terminal capability.
func refIcon(theme *styles.Theme, t model.RefType) string {
	if !theme.SupportsEmoji() {
		return asciiRefIcons[t]
	}
	return refIcons[t]
}

// RenderReference renders one resolved reference inline.
func RenderReference(theme *styles.Theme, ref resolve.Reference, maxWidth int) string {
	switch ref.State {
	case resolve.StatePending, resolve.StateLoading:
		return theme.RefPending.Render("⧗ Loading...")
	case resolve.StateDeleted:
		return theme.RefDeleted.Render(resolve.DeletedLabel)
	case resolve.StateError:
		return theme.RefError.Render(ref.Path)
	}

	icon := refIcon(theme, ref.Tag.Type)
	label := ref.Path
	if ref.Tag.Text != "" {
		label = ref.Tag.Text + " (" + ref.Path + ")"
	}
	if maxWidth > 8 {
		label = util.TruncateWidth(label, maxWidth-4)
	}
	return theme.RefResolved.Render(icon + " " + label)
}

// fencePattern matches a fenced code block with an optional language tag.
var fencePattern = regexp.MustCompile("(?s)```([a-zA-Z0-9+#-]*)\\n?(.*?)```")

// highlightFences replaces fenced code blocks in preview text with their
// syntax-highlighted form. Quiz options and flashcard backs bypass the
// markdown renderer, so code embedded in them is highlighted here.
func highlightFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	return fencePattern.ReplaceAllStringFunc(s, func(block string) string {
		m := fencePattern.FindStringSubmatch(block)
		return HighlightCode(strings.TrimRight(m[2], "\n"), m[1])
	})
}

// RenderReferenceCard renders the preview content below a resolved
// flashcard or quiz reference.
func RenderReferenceCard(theme *styles.Theme, ref resolve.Reference, maxWidth int) string {
	if ref.Content == nil {
		return ""
	}

	card := ref.Content
	var body string
	switch {
	case card.Flashcard != nil:
		body = "Q: " + highlightFences(card.Flashcard.Front) +
			"\nA: " + highlightFences(card.Flashcard.Back)
	case card.Question != nil:
		var b strings.Builder
		b.WriteString(highlightFences(card.Question.Question))
		for _, opt := range card.Question.Options {
			b.WriteString("\n  • ")
			b.WriteString(highlightFences(opt))
		}
		body = b.String()
	default:
		return ""
	}

	style := theme.RefCard
	if maxWidth > 8 {
		style = style.MaxWidth(maxWidth - 4)
	}
	return style.Render(body)
}
