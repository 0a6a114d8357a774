// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the chat data model shared across the client:
// sessions, messages, mentioned study materials, and the reference-tag
// wire format embedded in message text.
package model

import "time"

// =============================================================================
// ROLES
// =============================================================================

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// =============================================================================
// SESSIONS
// =============================================================================

// ChatSession is a server-persisted conversation thread.
type ChatSession struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ContextFileIDs []string  `json:"contextFileIds,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
}

// =============================================================================
// MESSAGES
// =============================================================================

// ChatMessage is a single message in a session. Content may embed
// reference segments (see RefTag); the AI message under construction is
// mutated in place as stream deltas arrive.
type ChatMessage struct {
	ID                string              `json:"id"`
	Content           string              `json:"content"`
	Role              Role                `json:"role"`
	CreatedAt         time.Time           `json:"createdAt"`
	Citations         []string            `json:"citations,omitempty"`
	SelectedMaterials []MentionedMaterial `json:"selectedMaterials,omitempty"`
}

// =============================================================================
// MATERIALS
// =============================================================================

// MaterialType is the category of a study material.
type MaterialType string

const (
	MaterialCourse        MaterialType = "course"
	MaterialFolder        MaterialType = "folder"
	MaterialFile          MaterialType = "file"
	MaterialQuiz          MaterialType = "quiz"
	MaterialFlashcardDeck MaterialType = "flashcardDeck"
)

// MentionedMaterial is a study item attached to an outgoing message via
// the "@" search. DisplayName is the human-readable path with spaces
// replaced by underscores.
type MentionedMaterial struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"displayName"`
	Type         MaterialType `json:"type"`
	OriginalName string       `json:"originalName"`
	CourseID     string       `json:"courseId,omitempty"`
}

// =============================================================================
// REFERENCE TAGS
// =============================================================================

// RefType is the category a reference tag points at.
type RefType string

const (
	RefFile          RefType = "file"
	RefFlashcardDeck RefType = "flashcardDeck"
	RefQuiz          RefType = "quiz"
)

// RefTag is the JSON object carried between [REF] and [/REF] delimiters
// inside message content. The wire format is bit-exact:
//
//	[REF]{"type":"file","id":"...","text":"..."}[/REF]
//
// FlashcardID and QuestionID narrow a deck or quiz reference down to a
// single item for preview rendering.
type RefTag struct {
	Type        RefType `json:"type"`
	ID          string  `json:"id"`
	Text        string  `json:"text,omitempty"`
	FlashcardID string  `json:"flashcardId,omitempty"`
	QuestionID  string  `json:"questionId,omitempty"`
}

// ContentID returns the id of the previewable item a tag points at, or ""
// for references without preview content (files).
func (t *RefTag) ContentID() string {
	switch t.Type {
	case RefFlashcardDeck:
		return t.FlashcardID
	case RefQuiz:
		return t.QuestionID
	default:
		return ""
	}
}

// =============================================================================
// PREVIEW CONTENT
// =============================================================================

// Flashcard is the preview content for a flashcard reference.
type Flashcard struct {
	ID     string `json:"id"`
	DeckID string `json:"deckId,omitempty"`
	Front  string `json:"front"`
	Back   string `json:"back"`
}

// QuizQuestion is the preview content for a quiz-question reference.
type QuizQuestion struct {
	ID       string   `json:"id"`
	QuizID   string   `json:"quizId,omitempty"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Answer   string   `json:"answer,omitempty"`
}

// ReferenceContent holds either a flashcard or a quiz question. Exactly one
// field is non-nil.
type ReferenceContent struct {
	Flashcard *Flashcard    `json:"flashcard,omitempty"`
	Question  *QuizQuestion `json:"question,omitempty"`
}
