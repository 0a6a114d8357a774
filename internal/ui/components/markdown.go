// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// MarkdownRenderer renders AI message bodies. Glamour renderers are built
// per width and cached; streaming re-renders the same width constantly.
type MarkdownRenderer struct {
	mu       sync.Mutex
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer for the given wrap width.
func NewMarkdownRenderer(width int) *MarkdownRenderer {
	return &MarkdownRenderer{width: width}
}

// SetWidth invalidates the cached renderer when the terminal resizes.
func (r *MarkdownRenderer) SetWidth(width int) {
	r.mu.Lock()
	if width != r.width {
		r.width = width
		r.renderer = nil
	}
	r.mu.Unlock()
}

// Render renders markdown to styled terminal text. On any failure the raw
// text is returned; a render hiccup must never hide message content.
func (r *MarkdownRenderer) Render(text string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.renderer == nil {
		width := r.width
		if width < 20 {
			width = 20
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
			glamour.WithEmoji(),
		)
		if err != nil {
			return text
		}
		r.renderer = renderer
	}

	out, err := r.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// =============================================================================
// CODE HIGHLIGHTING
// =============================================================================

// HighlightCode syntax-highlights a standalone code snippet (used for
// quiz-question code options, which bypass the markdown path). Returns the
// input unchanged when highlighting fails.
func HighlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return code
	}

	style := chromaStyles.Get("monokai")
	formatter := formatters.Get("terminal256")
	if style == nil || formatter == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var b strings.Builder
	if err := formatter.Format(&b, style, iterator); err != nil {
		return code
	}
	return b.String()
}
