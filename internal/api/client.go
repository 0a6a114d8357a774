// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the REST client for the study-assistant backend.
//
// All endpoints speak JSON over HTTPS with a bearer token supplied by a
// TokenStore. Non-streaming requests go through a shared pooled client with
// retry and exponential backoff; the chat-completion stream uses a separate
// client without a timeout, controlled via context.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lecsihq/lecsi-tui/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout applies to non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry budget for transient failures.
	DefaultMaxRetries = 3

	// retryBaseDelay is the base delay for exponential backoff.
	retryBaseDelay = 500 * time.Millisecond

	// retryMaxDelay caps the backoff delay.
	retryMaxDelay = 10 * time.Second

	// MaxResponseSize bounds response bodies to keep a misbehaving server
	// from exhausting memory.
	MaxResponseSize = 10 * 1024 * 1024
)

var (
	// sharedTransport pools connections across all clients.
	sharedTransport = &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	// sharedStreamingClient has no timeout; stream lifetime is controlled
	// via the request context.
	sharedStreamingClient = &http.Client{
		Transport: sharedTransport,
	}
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates no bearer token is available.
	ErrNotConfigured = errors.New("backend token not configured")

	// ErrAuthFailed indicates the token was rejected.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNotFound indicates the requested entity does not exist (404).
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")
)

// APIError is a non-2xx response that did not map to a sentinel error.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d)", e.Status)
}

// apiErrorResponse is the backend's error body shape.
type apiErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// =============================================================================
// TOKEN SOURCE
// =============================================================================

// TokenSource supplies the current bearer token. The concrete token store
// (file-backed, with change notification) lives in token.go; tests inject
// static sources.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed-token TokenSource for tests and scripts.
type StaticToken string

// Token returns the static token value.
func (s StaticToken) Token() string { return string(s) }

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the study-assistant backend.
type Client struct {
	baseURL    string
	tokens     TokenSource
	maxRetries int
	httpClient *http.Client

	// pathLimiter bounds reference-path lookups. During streaming a single
	// message can surface many references in quick succession; the limiter
	// keeps that burst from flooding the backend.
	pathLimiter *rate.Limiter
}

// NewClient creates a backend client.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokens:     tokens,
		maxRetries: DefaultMaxRetries,
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
		pathLimiter: rate.NewLimiter(rate.Limit(20), 40),
	}
}

// WithMaxRetries sets the retry budget for non-streaming requests.
func (c *Client) WithMaxRetries(n int) *Client {
	c.maxRetries = n
	return c
}

// WithTimeout sets the per-request timeout for non-streaming requests.
// Streaming requests are unaffected; their lifetime is context-bound.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.httpClient = &http.Client{
			Transport: sharedTransport,
			Timeout:   d,
		}
	}
	return c
}

// IsConfigured reports whether a bearer token is currently available.
func (c *Client) IsConfigured() bool {
	return c.tokens != nil && c.tokens.Token() != ""
}

// setHeaders sets the standard headers on a request.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.tokens.Token())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "lecsi-tui/0.3.0")
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// readResponse reads a body with the size limit applied.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts a non-2xx response to a typed error.
func handleErrorResponse(statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	msg := ""
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Message != "" {
			msg = apiErr.Message
		} else {
			msg = apiErr.Error
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
		}
		return ErrAuthFailed
	case http.StatusNotFound:
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		}
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &APIError{Status: statusCode, Message: msg}
	}
}

// isRetryable reports whether an error should trigger another attempt.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	// 404 and auth failures are final.
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAuthFailed) {
		return false
	}
	// Anything else is a transport error and worth retrying.
	return true
}

// calculateBackoff returns the delay before the next retry attempt.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * time.Duration(1<<uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// doJSON performs one request with retries and decodes the response into out.
// A nil out discards the body. reqBody may be nil for GET requests.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, out any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(attempt - 1)):
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if isRetryable(lastErr) {
				continue
			}
			return lastErr
		}

		respBody, err := readResponse(resp)
		resp.Body.Close()
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = handleErrorResponse(resp.StatusCode, respBody)
			if isRetryable(lastErr) {
				continue
			}
			return lastErr
		}

		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return errors.New("max retries exceeded")
}

// =============================================================================
// SESSIONS
// =============================================================================

// CreateSessionRequest is the body for POST /chat/sessions.
type CreateSessionRequest struct {
	Name           string   `json:"name,omitempty"`
	ContextFileIDs []string `json:"contextFileIds,omitempty"`
}

// CreateSession creates a new chat session.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := c.doJSON(ctx, http.MethodPost, "/chat/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions fetches all sessions for the current user.
func (c *Client) ListSessions(ctx context.Context) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	if err := c.doJSON(ctx, http.MethodGet, "/chat/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession fetches one session by id. Returns ErrNotFound on 404, which
// callers use to detect stale local session references.
func (c *Client) GetSession(ctx context.Context, id string) (*model.ChatSession, error) {
	var session model.ChatSession
	path := "/chat/sessions/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetMessages fetches the persisted messages of a session.
func (c *Client) GetMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	path := "/chat/sessions/" + url.PathEscape(sessionID) + "/messages"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// =============================================================================
// STREAMING
// =============================================================================

// SendMessageRequest is the body for the streaming chat-completion endpoint.
// CourseID is omitted from the payload entirely unless a course-type
// material was explicitly selected.
type SendMessageRequest struct {
	Content          string   `json:"content"`
	FlashCardDeckIDs []string `json:"flashCardDeckIds"`
	QuizIDs          []string `json:"quizIds"`
	FileIDs          []string `json:"fileIds"`
	FolderIDs        []string `json:"folderIds"`
	CourseID         string   `json:"courseId,omitempty"`
	ThinkMode        bool     `json:"thinkMode"`
}

// StreamMessage posts a message and returns the response body carrying the
// text/event-stream. The caller owns the body and must close it; the stream
// outlives this call and is cancelled via ctx.
func (c *Client) StreamMessage(ctx context.Context, sessionID string, req SendMessageRequest) (io.ReadCloser, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	path := c.baseURL + "/chat/sessions/" + url.PathEscape(sessionID) + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Connection", "keep-alive")

	resp, err := sharedStreamingClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		resp.Body.Close()
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	return resp.Body, nil
}

// =============================================================================
// REFERENCES
// =============================================================================

// referencePathResponse tolerates both response shapes of the path
// endpoint: {"path": "..."} or a bare JSON string.
type referencePathResponse struct {
	Path string `json:"path"`
}

// GetReferencePath resolves the display path of a single reference.
// Calls are rate limited; bursts beyond the limiter wait their turn.
func (c *Client) GetReferencePath(ctx context.Context, refType, id string) (string, error) {
	if err := c.pathLimiter.Wait(ctx); err != nil {
		return "", err
	}

	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	path := "/chat/reference-path/" + url.PathEscape(refType) + "/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	body, readErr := readResponse(resp)
	resp.Body.Close()
	if readErr != nil {
		return "", readErr
	}
	if resp.StatusCode != http.StatusOK {
		return "", handleErrorResponse(resp.StatusCode, body)
	}

	var obj referencePathResponse
	if err := json.Unmarshal(body, &obj); err == nil && obj.Path != "" {
		return obj.Path, nil
	}
	var bare string
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}
	return "", fmt.Errorf("unexpected reference-path response: %s", strings.TrimSpace(string(body)))
}

// batchRequest is the body for the batch content endpoints.
type batchRequest struct {
	IDs []string `json:"ids"`
}

// BatchFlashcards fetches flashcards by id in one request.
func (c *Client) BatchFlashcards(ctx context.Context, ids []string) (map[string]model.Flashcard, error) {
	out := make(map[string]model.Flashcard)
	if err := c.doJSON(ctx, http.MethodPost, "/flashcards/references/batch", batchRequest{IDs: ids}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchQuizQuestions fetches quiz questions by id in one request.
func (c *Client) BatchQuizQuestions(ctx context.Context, ids []string) (map[string]model.QuizQuestion, error) {
	out := make(map[string]model.QuizQuestion)
	if err := c.doJSON(ctx, http.MethodPost, "/quizzes/references/batch", batchRequest{IDs: ids}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetFlashcard fetches a single flashcard. Fallback path only; regular
// resolution goes through BatchFlashcards.
func (c *Client) GetFlashcard(ctx context.Context, id string) (*model.Flashcard, error) {
	var card model.Flashcard
	if err := c.doJSON(ctx, http.MethodGet, "/flashcards/"+url.PathEscape(id), nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// GetQuizQuestion fetches a single quiz question. Fallback path only.
func (c *Client) GetQuizQuestion(ctx context.Context, id string) (*model.QuizQuestion, error) {
	var q model.QuizQuestion
	if err := c.doJSON(ctx, http.MethodGet, "/quizzes/question/"+url.PathEscape(id), nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// =============================================================================
// MATERIAL SEARCH
// =============================================================================

// SearchMaterials performs the search behind the "@" mention panel.
func (c *Client) SearchMaterials(ctx context.Context, query string) ([]model.MentionedMaterial, error) {
	var results []model.MentionedMaterial
	path := "/materials/search?q=" + url.QueryEscape(query)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}
