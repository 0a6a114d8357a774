// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"

	"github.com/lecsihq/lecsi-tui/internal/model"
	"github.com/lecsihq/lecsi-tui/internal/resolve"
	"github.com/lecsihq/lecsi-tui/internal/ui/styles"
)

// =============================================================================
// ICON FALLBACK TESTS
// =============================================================================

func TestRenderReferenceIconFallsBackOnAscii(t *testing.T) {
	ref := resolve.Reference{
		State: resolve.StateReady,
		Path:  "Biology/notes.pdf",
		Tag:   &model.RefTag{Type: model.RefFile, Text: "notes"},
	}

	theme := styles.NewTheme("dark")
	theme.ColorProfile = termenv.Ascii
	out := RenderReference(theme, ref, 80)
	if !strings.Contains(out, "[f]") {
		t.Errorf("Expected ASCII icon in %q", out)
	}
	if strings.Contains(out, "📄") {
		t.Errorf("ASCII terminal must not receive emoji: %q", out)
	}

	theme.ColorProfile = termenv.ANSI256
	if out := RenderReference(theme, ref, 80); !strings.Contains(out, "📄") {
		t.Errorf("Expected emoji icon in %q", out)
	}
}

func TestRenderMentionPanelIconFallsBackOnAscii(t *testing.T) {
	theme := styles.NewTheme("dark")
	theme.ColorProfile = termenv.Ascii

	results := []model.MentionedMaterial{
		{ID: "q1", OriginalName: "Midterm Quiz", Type: model.MaterialQuiz},
	}
	out := RenderMentionPanel(theme, results, 0, 80)
	if !strings.Contains(out, "[q]") {
		t.Errorf("Expected ASCII icon in %q", out)
	}
}

// =============================================================================
// CODE HIGHLIGHTING TESTS
// =============================================================================

func TestHighlightFencesReplacesCodeBlocks(t *testing.T) {
	in := "Pick the loop:\n```go\nfor i := 0; i < n; i++ { fmt.Println(i) }\n```"
	out := highlightFences(in)

	if strings.Contains(out, "```") {
		t.Errorf("Fence markers leaked into output: %q", out)
	}
	if !strings.Contains(out, "Println") {
		t.Errorf("Code text missing from output: %q", out)
	}
	if out == in {
		t.Error("Expected highlighted output to differ from input")
	}
}

func TestHighlightFencesLeavesPlainTextAlone(t *testing.T) {
	in := "What is the powerhouse of the cell?"
	if out := highlightFences(in); out != in {
		t.Errorf("Plain text must pass through unchanged, got %q", out)
	}
}

func TestRenderReferenceCardHighlightsQuizOptions(t *testing.T) {
	theme := styles.NewTheme("dark")
	ref := resolve.Reference{
		State: resolve.StateReady,
		Tag:   &model.RefTag{Type: model.RefQuiz, ID: "q1", QuestionID: "Q1"},
		Content: &model.ReferenceContent{
			Question: &model.QuizQuestion{
				ID:       "Q1",
				Question: "Which call prints a line?",
				Options:  []string{"```go\nfmt.Println(\"hi\")\n```", "print only"},
			},
		},
	}

	out := RenderReferenceCard(theme, ref, 120)
	if strings.Contains(out, "```") {
		t.Errorf("Fence markers leaked into card: %q", out)
	}
	if !strings.Contains(out, "Println") {
		t.Errorf("Highlighted option text missing: %q", out)
	}
	if !strings.Contains(out, "print only") {
		t.Errorf("Plain option missing: %q", out)
	}
}
