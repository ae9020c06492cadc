// Package engine is the HTTP client for the external dialogue engine,
// the service that produces bot replies and questionnaire deltas.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dajeong-health/intake-server/internal/intake"
)

// Sentinel errors the conversation layer maps onto API responses.
var (
	// ErrUnavailable means the engine could not be reached or returned a
	// server-side failure. The turn fails; nothing is persisted.
	ErrUnavailable = errors.New("engine unavailable")
	// ErrTimeout means the engine did not answer within the request
	// deadline.
	ErrTimeout = errors.New("engine timeout")
)

const (
	// DefaultChatTimeout bounds a single turn's engine call.
	DefaultChatTimeout = 60 * time.Second
	// DefaultSummaryTimeout bounds report generation.
	DefaultSummaryTimeout = 30 * time.Second
)

// ChatRequest is the full turn context sent to the engine: the new user
// message plus enough persisted state for it to act statelessly.
type ChatRequest struct {
	Message           string                 `json:"message"`
	UserID            string                 `json:"user_id"`
	SessionID         string                 `json:"session_id"`
	Timestamp         string                 `json:"timestamp"`
	History           string                 `json:"history"`
	LastBotMessage    *string                `json:"last_bot_message"`
	Status            *intake.StatusSnapshot `json:"status"`
	MessageCount      int                    `json:"messageCount"`
	SelectedPolicies  []string               `json:"selectedPolicies"`
	TonePreference    string                 `json:"tonePreference"`
	ConversationStyle string                 `json:"conversationStyle"`
}

// ChatResponse is the engine's answer for one turn.
type ChatResponse struct {
	Response              string              `json:"response"`
	UpdatedSlots          []intake.SlotUpdate `json:"updated_slots"`
	Intent                string              `json:"intent"`
	FirstPolicy           string              `json:"first_policy"`
	SecondPolicy          string              `json:"second_policy"`
	IsCompleted           *bool               `json:"is_completed"`
	IsFinished            bool                `json:"is_finished"`
	LastAskedQuestion     *string             `json:"last_asked_question"`
	LastAskedQuestionText *string             `json:"last_asked_question_text"`
	LastAnsweredQuestion  *string             `json:"last_answered_question"`
	SelectedPolicies      []string            `json:"selected_policies"`
}

// Policies returns the policy tags the engine picked this turn, in
// order, with empty entries dropped.
func (r *ChatResponse) Policies() []string {
	if len(r.SelectedPolicies) > 0 {
		return r.SelectedPolicies
	}
	var policies []string
	for _, p := range []string{r.FirstPolicy, r.SecondPolicy} {
		if p != "" {
			policies = append(policies, p)
		}
	}
	return policies
}

// Summary is the generated clinical report body.
type Summary struct {
	Depression string `json:"depression"`
	Anxiety    string `json:"anxiety"`
	Suggestion string `json:"suggestion"`
}

type summaryEnvelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    *Summary `json:"data"`
}

// Client talks to the dialogue engine over HTTP.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	chatTimeout    time.Duration
	summaryTimeout time.Duration
	logger         *slog.Logger
}

// NewClient creates an engine client. Zero timeouts fall back to the
// defaults.
func NewClient(baseURL string, chatTimeout, summaryTimeout time.Duration, logger *slog.Logger) *Client {
	if chatTimeout <= 0 {
		chatTimeout = DefaultChatTimeout
	}
	if summaryTimeout <= 0 {
		summaryTimeout = DefaultSummaryTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:        baseURL,
		httpClient:     &http.Client{},
		chatTimeout:    chatTimeout,
		summaryTimeout: summaryTimeout,
		logger:         logger.With("component", "engine"),
	}
}

// Chat runs one dialogue turn against the engine.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	start := time.Now()
	var resp ChatResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/chat", req, &resp); err != nil {
		c.logger.Error("chat request failed",
			"user_id", req.UserID,
			"session_id", req.SessionID,
			"error", err)
		return nil, err
	}

	c.logger.Debug("chat turn completed",
		"user_id", req.UserID,
		"session_id", req.SessionID,
		"intent", resp.Intent,
		"duration_ms", time.Since(start).Milliseconds())
	return &resp, nil
}

// Summarize asks the engine to generate the clinical summary for a
// finished conversation.
func (c *Client) Summarize(ctx context.Context, userID, sessionID string) (*Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.summaryTimeout)
	defer cancel()

	path := fmt.Sprintf("/api/summary/%s/%s", url.PathEscape(userID), url.PathEscape(sessionID))
	var envelope summaryEnvelope
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		c.logger.Error("summary request failed",
			"user_id", userID,
			"session_id", sessionID,
			"error", err)
		return nil, err
	}

	if !envelope.Success || envelope.Data == nil {
		return nil, fmt.Errorf("%w: summary generation failed: %s", ErrUnavailable, envelope.Message)
	}
	return envelope.Data, nil
}

// doRequest handles the HTTP request/response cycle with proper error
// handling.
func (c *Client) doRequest(ctx context.Context, method, path string, body, response any) error {
	req, err := c.buildRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d from %s %s", ErrUnavailable, resp.StatusCode, method, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}

	return nil
}

// buildRequest creates a new HTTP request with proper headers.
func (c *Client) buildRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
