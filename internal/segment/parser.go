// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package segment splits chat message text into plain-text and reference
// segments.
//
// References are embedded in message content between literal [REF] and
// [/REF] tokens, with a JSON tag object in between:
//
//	[REF]{"type":"file","id":"f1","text":"notes.pdf"}[/REF]
//
// The parser is a pure function of the full message text and is re-run on
// every stream update. While a reference is still arriving, its closing
// token or tag JSON may be missing; such a segment is emitted with a nil
// Tag so renderers show a loading placeholder instead of leaking raw
// delimiter text into the UI.
package segment

import (
	"encoding/json"
	"regexp"

	"github.com/lecsihq/lecsi-tui/internal/model"
)

// =============================================================================
// TOKENS
// =============================================================================

const (
	// OpenToken and CloseToken are the reference delimiters. The wire
	// format is bit-exact; these must never change.
	OpenToken  = "[REF]"
	CloseToken = "[/REF]"
)

// tokenPattern matches either delimiter so the split keeps the tokens as
// slices of their own, in original order.
var tokenPattern = regexp.MustCompile(`\[REF\]|\[/REF\]`)

// =============================================================================
// SEGMENTS
// =============================================================================

// Kind distinguishes plain text from reference segments.
type Kind int

const (
	KindText Kind = iota
	KindReference
)

// Segment is one ordered slice of a parsed message.
type Segment struct {
	Kind Kind

	// Content is the plain text for text segments, or the raw inner text
	// (the tag JSON, possibly incomplete) for reference segments.
	Content string

	// Tag is the parsed reference tag. Nil while the reference is still
	// streaming or when its JSON is malformed; renderers treat nil as
	// "pending".
	Tag *model.RefTag
}

// IsPending reports whether a reference segment has no usable tag yet.
func (s *Segment) IsPending() bool {
	return s.Kind == KindReference && s.Tag == nil
}

// =============================================================================
// PARSER
// =============================================================================

// Parse splits text into an ordered list of segments. It never fails:
// malformed or unterminated references degrade to pending reference
// segments, and parsing the same input twice yields identical output.
func Parse(text string) []Segment {
	if text == "" {
		return nil
	}

	var segments []Segment
	inside := false

	for _, slice := range splitKeepingTokens(text) {
		switch slice {
		case OpenToken:
			// A nested open token while already inside is treated as tag
			// payload; the backend never emits nested references but a
			// stream boundary can transiently look like one.
			if inside {
				appendInner(segments, slice)
				continue
			}
			segments = append(segments, Segment{Kind: KindReference})
			inside = true

		case CloseToken:
			if !inside {
				segments = appendText(segments, slice)
				continue
			}
			cur := &segments[len(segments)-1]
			var tag model.RefTag
			if err := json.Unmarshal([]byte(cur.Content), &tag); err == nil {
				cur.Tag = &tag
			}
			// On parse failure the tag stays nil: the JSON itself may
			// still be streaming in.
			inside = false

		default:
			if inside {
				appendInner(segments, slice)
			} else {
				segments = appendText(segments, slice)
			}
		}
	}

	return segments
}

// splitKeepingTokens splits text on the delimiter tokens, keeping each
// token as its own slice in original order.
func splitKeepingTokens(text string) []string {
	matches := tokenPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	slices := make([]string, 0, len(matches)*2+1)
	prev := 0
	for _, m := range matches {
		if m[0] > prev {
			slices = append(slices, text[prev:m[0]])
		}
		slices = append(slices, text[m[0]:m[1]])
		prev = m[1]
	}
	if prev < len(text) {
		slices = append(slices, text[prev:])
	}
	return slices
}

// appendInner adds raw content to the open reference segment.
func appendInner(segments []Segment, s string) {
	segments[len(segments)-1].Content += s
}

// appendText adds plain text, merging with a preceding text segment.
func appendText(segments []Segment, s string) []Segment {
	if n := len(segments); n > 0 && segments[n-1].Kind == KindText {
		segments[n-1].Content += s
		return segments
	}
	return append(segments, Segment{Kind: KindText, Content: s})
}

// References returns the parsed tags of all resolved reference segments.
func References(segments []Segment) []model.RefTag {
	var tags []model.RefTag
	for i := range segments {
		if segments[i].Kind == KindReference && segments[i].Tag != nil {
			tags = append(tags, *segments[i].Tag)
		}
	}
	return tags
}
