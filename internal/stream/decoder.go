// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the chat-completion event stream.
//
// The backend delivers AI responses as server-sent events: each frame is a
// "data: <payload>" line where the payload is either a JSON object with a
// "text" field, a bare JSON string, or (from misbehaving proxies) a raw
// string that may carry stray surrounding quotes. The decoder extracts the
// text deltas, appends them to a growing buffer, and republishes the full
// buffer after every chunk so renderers never observe a torn update even
// when a chunk boundary splits a multi-byte character or a reference token.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// dataPrefix marks an SSE data line; anything else is ignored.
	dataPrefix = "data:"

	// readChunkSize is the read buffer size for the stream loop.
	readChunkSize = 4 * 1024

	// MaxLineSize caps a single SSE line. A line beyond this is a protocol
	// violation and aborts the stream rather than growing without bound.
	MaxLineSize = 64 * 1024
)

// ErrLineTooLong is returned when a single SSE line exceeds MaxLineSize.
var ErrLineTooLong = errors.New("sse line exceeds maximum size")

// =============================================================================
// DELTA EXTRACTION
// =============================================================================

// textFrame is the JSON object payload shape.
type textFrame struct {
	Text *string `json:"text"`
}

// extractDelta turns one data-line payload into a text delta.
// Returns ok=false for heartbeats and frames carrying no text.
func extractDelta(payload string) (string, bool) {
	payload = strings.TrimSpace(payload)
	if payload == "" || payload == "{}" {
		return "", false
	}

	// JSON object with a text field.
	if strings.HasPrefix(payload, "{") {
		var frame textFrame
		if err := json.Unmarshal([]byte(payload), &frame); err == nil {
			if frame.Text != nil {
				return *frame.Text, true
			}
			return "", false
		}
	}

	// Bare JSON string.
	var s string
	if err := json.Unmarshal([]byte(payload), &s); err == nil {
		return s, true
	}

	// Unparseable: treat as literal text. Servers that fail to escape
	// their strings still wrap them in quotes, so strip a matching pair.
	if len(payload) >= 2 && payload[0] == '"' && payload[len(payload)-1] == '"' {
		payload = payload[1 : len(payload)-1]
	}
	return payload, true
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder accumulates stream deltas into a message buffer.
//
// Decoder is not safe for concurrent use; Run feeds it from a single
// goroutine and callbacks run on that goroutine.
type Decoder struct {
	buf     strings.Builder
	carry   string // incomplete trailing line from the previous chunk
	update  func(content string)
}

// NewDecoder creates a decoder. update is invoked with the full accumulated
// content (never just the delta) after every chunk that produced text.
func NewDecoder(update func(content string)) *Decoder {
	return &Decoder{update: update}
}

// Content returns the accumulated message text.
func (d *Decoder) Content() string {
	return d.buf.String()
}

// Feed processes one raw chunk from the stream. All deltas found in the
// chunk are concatenated and appended to the buffer in a single step, then
// the update callback republishes the whole buffer.
func (d *Decoder) Feed(chunk []byte) error {
	data := d.carry + string(chunk)

	// Keep any incomplete trailing line for the next chunk so a frame
	// split across chunk boundaries is still parsed whole.
	lastNL := strings.LastIndexByte(data, '\n')
	if lastNL < 0 {
		if len(data) > MaxLineSize {
			return ErrLineTooLong
		}
		d.carry = data
		return nil
	}
	d.carry = data[lastNL+1:]
	if len(d.carry) > MaxLineSize {
		return ErrLineTooLong
	}

	var delta strings.Builder
	for _, line := range strings.Split(data[:lastNL], "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(line[len(dataPrefix):])
		if text, ok := extractDelta(payload); ok {
			delta.WriteString(text)
		}
	}

	if delta.Len() == 0 {
		return nil
	}

	d.buf.WriteString(delta.String())
	if d.update != nil {
		d.update(d.buf.String())
	}
	return nil
}

// Flush processes whatever is left in the carry buffer. Called at stream
// end so a final frame without a trailing newline is not lost.
func (d *Decoder) Flush() {
	if d.carry == "" {
		return
	}
	line := strings.TrimSuffix(d.carry, "\r")
	d.carry = ""
	if !strings.HasPrefix(line, dataPrefix) {
		return
	}
	payload := strings.TrimSpace(line[len(dataPrefix):])
	text, ok := extractDelta(payload)
	if !ok || text == "" {
		return
	}
	d.buf.WriteString(text)
	if d.update != nil {
		d.update(d.buf.String())
	}
}

// =============================================================================
// READ LOOP
// =============================================================================

// Run reads the stream until EOF, context cancellation, or a transport
// error. On EOF the decoder flushes and returns nil: the stream completed
// and the caller should reconcile with the server's persisted messages.
// On error the partially accumulated content stays available via Content.
func (d *Decoder) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			if feedErr := d.Feed(buf[:n]); feedErr != nil {
				return feedErr
			}
		}
		if err != nil {
			if err == io.EOF {
				d.Flush()
				return nil
			}
			return err
		}
	}
}
