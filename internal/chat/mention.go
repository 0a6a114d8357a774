// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/lecsihq/lecsi-tui/internal/model"
)

// =============================================================================
// MENTION SEARCH
// =============================================================================

// mentionState tracks the "@" search panel. The panel is open while the
// input line ends in an unterminated "@query" run; a space terminates the
// run and closes the panel.
type mentionState struct {
	active  bool
	start   int // byte offset of the triggering '@' in the input
	query   string
	results []model.MentionedMaterial
	seq     int // search sequence, to drop out-of-order responses
}

// MentionActive reports whether the search panel is open.
func (c *Controller) MentionActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mention.active
}

// MentionResults returns the current search results.
func (c *Controller) MentionResults() []model.MentionedMaterial {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.MentionedMaterial, len(c.mention.results))
	copy(out, c.mention.results)
	return out
}

// OnInputChanged feeds the current input line into the mention state
// machine. An '@' followed by a non-space character opens the panel and
// searches as the user types; an '@' followed immediately by a space is
// an ordinary at-sign and suppresses the panel for that occurrence.
func (c *Controller) OnInputChanged(ctx context.Context, input string) {
	at := strings.LastIndexByte(input, '@')

	c.mu.Lock()
	if at < 0 {
		c.closeMentionLocked()
		c.mu.Unlock()
		return
	}

	rest := input[at+1:]
	if rest == "" || strings.ContainsRune(rest, ' ') {
		// Nothing typed yet, or the run was terminated.
		c.closeMentionLocked()
		c.mu.Unlock()
		return
	}

	c.mention.active = true
	c.mention.start = at
	c.mention.query = rest
	c.mention.seq++
	seq := c.mention.seq
	c.mu.Unlock()

	go c.searchMentions(ctx, seq, rest)
}

// searchMentions runs one search-as-you-type query. Responses arriving
// after a newer query are dropped.
func (c *Controller) searchMentions(ctx context.Context, seq int, query string) {
	results, err := c.backend.SearchMaterials(ctx, query)

	c.mu.Lock()
	if !c.mention.active || c.mention.seq != seq {
		c.mu.Unlock()
		return
	}
	if err != nil {
		// A failed search just shows no results; typing retries it.
		c.mention.results = nil
	} else {
		c.mention.results = results
	}
	c.mu.Unlock()
	c.notify()
}

// SelectMention attaches result i and returns the input line with the
// "@query" run removed. Enter with results present selects the top result
// (callers pass i = 0).
func (c *Controller) SelectMention(i int, input string) string {
	c.mu.Lock()
	if !c.mention.active || i < 0 || i >= len(c.mention.results) {
		c.mu.Unlock()
		return input
	}
	chosen := c.mention.results[i]
	start := c.mention.start
	c.selected = append(c.selected, chosen)
	c.closeMentionLocked()
	c.mu.Unlock()
	c.notify()

	if start >= 0 && start <= len(input) {
		return strings.TrimRight(input[:start], " ") + " "
	}
	return input
}

// CloseMention dismisses the panel without selecting (Escape).
func (c *Controller) CloseMention() {
	c.mu.Lock()
	c.closeMentionLocked()
	c.mu.Unlock()
	c.notify()
}

// closeMentionLocked resets the panel. Caller holds the lock.
func (c *Controller) closeMentionLocked() {
	c.mention.active = false
	c.mention.start = 0
	c.mention.query = ""
	c.mention.results = nil
}
