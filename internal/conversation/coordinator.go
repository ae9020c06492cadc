// Package conversation orchestrates a dialogue turn end to end: it reads
// persisted session state, calls the external dialogue engine, and writes
// the outcome back across the transcript, paired log, and intake state.
//
// Persistence after a successful engine call is strictly best-effort: each
// write is attempted independently, failures are logged and swallowed, and
// the reply always reaches the caller. Only a failed engine call is fatal
// to a turn.
package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dajeong-health/intake-server/internal/database"
	"github.com/dajeong-health/intake-server/internal/dedupe"
	"github.com/dajeong-health/intake-server/internal/engine"
	"github.com/dajeong-health/intake-server/internal/history"
	"github.com/dajeong-health/intake-server/internal/intake"
)

// ErrEmptyMessage is returned when a turn arrives with no utterance.
var ErrEmptyMessage = errors.New("empty message")

// Policy tags the engine emits when it wants the next user utterance
// interpreted as a preference pick.
const (
	PolicyAskTone  = "ask_tone_preference"
	PolicyAskStyle = "ask_conversation_style"
)

// Closed label sets the front-end offers for the preference questions.
// Only an exact pick is captured; anything else passes through as a
// normal utterance.
var (
	toneLabels = map[string]bool{
		"정중하지만 다정한 말투":  true,
		"이성적이고 전문적인 말투": true,
		"친구처럼 대화하는 말투":  true,
	}
	styleLabels = map[string]bool{
		"심층적이고 구체적인 대화": true,
		"간결하고 신속한 대화":   true,
	}
)

// ruleReplies are fixed canned responses handled locally, without the
// engine and without any persistence.
var ruleReplies = map[string]string{
	"자니?": "아니요? 저는 깨어 있어요!",
}

// Engine is the dialogue-engine surface the coordinator needs.
type Engine interface {
	Chat(ctx context.Context, req *engine.ChatRequest) (*engine.ChatResponse, error)
	Summarize(ctx context.Context, userID, sessionID string) (*engine.Summary, error)
}

// Options tune a Coordinator. Zero values fall back to the defaults the
// config layer also uses.
type Options struct {
	Greeting          string
	ClosingMessage    string
	HistoryWindow     int
	MessageDupWindow  time.Duration
	ExchangeDupWindow time.Duration
}

// Coordinator drives turns for all sessions. Safe for concurrent use;
// there is deliberately no per-session lock, so concurrent turns on one
// key may interleave (see the paired-log design notes).
type Coordinator struct {
	store  database.Store
	engine Engine
	logger *slog.Logger
	opts   Options
}

// New creates a Coordinator.
func New(store database.Store, eng Engine, logger *slog.Logger, opts Options) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.HistoryWindow == 0 {
		opts.HistoryWindow = 10
	}
	if opts.MessageDupWindow <= 0 {
		opts.MessageDupWindow = dedupe.DefaultMessageWindow
	}
	if opts.ExchangeDupWindow <= 0 {
		opts.ExchangeDupWindow = dedupe.DefaultExchangeWindow
	}
	return &Coordinator{
		store:  store,
		engine: eng,
		logger: logger.With("component", "conversation"),
		opts:   opts,
	}
}

// StartResult is the outcome of a session-start call.
type StartResult struct {
	Greeting string
	Created  bool
}

// StartSession idempotently creates the transcript (seeded with the
// greeting message) and the intake state for a session key. Concurrent
// calls for the same key still yield exactly one of each; repeat calls
// just refresh last activity.
func (c *Coordinator) StartSession(ctx context.Context, userID, sessionID, userAgent, ipAddress string) (*StartResult, error) {
	if err := c.store.EnsureUser(ctx, userID, userID); err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}

	created, err := c.store.CreateTranscript(ctx, &database.Transcript{
		UserID:    userID,
		SessionID: sessionID,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}, c.opts.Greeting)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript: %w", err)
	}

	if _, err := c.store.CreateIntakeState(ctx, userID, sessionID, intake.SeedQuestions()); err != nil {
		return nil, fmt.Errorf("failed to create intake state: %w", err)
	}

	c.logger.Info("session started",
		"user_id", userID,
		"session_id", sessionID,
		"created", created)
	return &StartResult{Greeting: c.opts.Greeting, Created: created}, nil
}

// TurnResult is what a completed turn hands back to the HTTP layer.
type TurnResult struct {
	Reply    string
	Finished bool
	Intent   string
	Policies []string
}

// HandleTurn runs one full dialogue turn.
func (c *Coordinator) HandleTurn(ctx context.Context, userID, sessionID, utterance string) (*TurnResult, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, ErrEmptyMessage
	}

	// Rule replies answer before any storage access so they perform no
	// writes at all, not even the implicit session creation.
	if reply, ok := ruleReplies[utterance]; ok {
		return &TurnResult{Reply: reply}, nil
	}

	transcript, state, err := c.loadOrCreate(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if transcript.IsFinished {
		c.logger.Debug("turn on finished session",
			"user_id", userID,
			"session_id", sessionID)
		return &TurnResult{Reply: c.opts.ClosingMessage, Finished: true}, nil
	}

	messages, err := c.store.GetMessages(ctx, transcript.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	lastBot := history.LastBotMessage(messages)

	policies, err := c.store.GetPolicies(ctx, transcript.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	c.capturePreference(ctx, transcript, policies, utterance)

	now := time.Now().UTC()
	var lastBotText *string
	if lastBot != nil {
		lastBotText = &lastBot.Text
	}
	resp, err := c.engine.Chat(ctx, &engine.ChatRequest{
		Message:           utterance,
		UserID:            userID,
		SessionID:         sessionID,
		Timestamp:         now.Format(time.RFC3339),
		History:           history.Render(messages, c.opts.HistoryWindow),
		LastBotMessage:    lastBotText,
		Status:            intake.Snapshot(state),
		MessageCount:      transcript.MessageCount,
		SelectedPolicies:  policies,
		TonePreference:    transcript.TonePreference,
		ConversationStyle: transcript.ConversationStyle,
	})
	if err != nil {
		return nil, err
	}

	// Engine succeeded; everything below is best-effort and must not
	// block the reply.
	c.recordExchange(ctx, userID, sessionID, lastBot, utterance, now)
	c.recordMessage(ctx, transcript.ID, database.SenderUser, utterance, now)
	c.recordMessage(ctx, transcript.ID, database.SenderBot, resp.Response, now)

	turnPolicies := resp.Policies()
	if len(turnPolicies) > 0 {
		if err := c.store.AppendPolicies(ctx, transcript.ID, turnPolicies); err != nil {
			c.logger.Error("failed to append policies",
				"session_id", sessionID,
				"error", err)
		}
	}

	if resp.IsFinished {
		if err := c.store.MarkFinished(ctx, transcript.ID); err != nil {
			c.logger.Error("failed to mark session finished",
				"session_id", sessionID,
				"error", err)
		}
	}

	if err := c.store.TouchActivity(ctx, transcript.ID); err != nil {
		c.logger.Error("failed to touch activity",
			"session_id", sessionID,
			"error", err)
	}

	if intake.ApplyDelta(state, resp.UpdatedSlots, resp.LastAskedQuestion, resp.LastAnsweredQuestion) {
		if err := c.store.UpdateIntakeState(ctx, state); err != nil {
			c.logger.Error("failed to update intake state",
				"session_id", sessionID,
				"error", err)
		}
	}

	return &TurnResult{
		Reply:    resp.Response,
		Finished: resp.IsFinished,
		Intent:   resp.Intent,
		Policies: turnPolicies,
	}, nil
}

// loadOrCreate fetches the transcript and intake state for a key,
// creating both (greeting seeded) when the client skipped session-start.
func (c *Coordinator) loadOrCreate(ctx context.Context, userID, sessionID string) (*database.Transcript, *database.IntakeState, error) {
	transcript, err := c.store.GetTranscript(ctx, userID, sessionID)
	if errors.Is(err, database.ErrNotFound) {
		if _, err := c.StartSession(ctx, userID, sessionID, "", ""); err != nil {
			return nil, nil, err
		}
		transcript, err = c.store.GetTranscript(ctx, userID, sessionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load transcript: %w", err)
		}
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to load transcript: %w", err)
	}

	state, err := c.store.GetIntakeState(ctx, userID, sessionID)
	if errors.Is(err, database.ErrNotFound) {
		if _, err := c.store.CreateIntakeState(ctx, userID, sessionID, intake.SeedQuestions()); err != nil {
			return nil, nil, fmt.Errorf("failed to create intake state: %w", err)
		}
		state, err = c.store.GetIntakeState(ctx, userID, sessionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load intake state: %w", err)
		}
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to load intake state: %w", err)
	}

	return transcript, state, nil
}

// capturePreference persists a tone/style pick when the engine asked for
// one on the previous turn and the utterance is an exact label. Best
// effort; non-matching input is simply a normal utterance.
func (c *Coordinator) capturePreference(ctx context.Context, t *database.Transcript, policies []string, utterance string) {
	if len(policies) == 0 {
		return
	}
	switch policies[len(policies)-1] {
	case PolicyAskTone:
		if toneLabels[utterance] {
			if err := c.store.SetTonePreference(ctx, t.ID, utterance); err != nil {
				c.logger.Error("failed to save tone preference",
					"session_id", t.SessionID,
					"error", err)
				return
			}
			t.TonePreference = utterance
		}
	case PolicyAskStyle:
		if styleLabels[utterance] {
			if err := c.store.SetConversationStyle(ctx, t.ID, utterance); err != nil {
				c.logger.Error("failed to save conversation style",
					"session_id", t.SessionID,
					"error", err)
				return
			}
			t.ConversationStyle = utterance
		}
	}
}

// recordExchange appends the (previous bot question, user answer) pair to
// the paired log unless the duplicate guard suppresses it.
func (c *Coordinator) recordExchange(ctx context.Context, userID, sessionID string, lastBot *database.TranscriptMessage, utterance string, now time.Time) {
	var botQuestion *string
	var responseTime int64
	if lastBot != nil {
		botQuestion = &lastBot.Text
		responseTime = now.Sub(lastBot.Timestamp).Milliseconds()
	}

	last, err := c.store.LastExchange(ctx, userID, sessionID)
	if err != nil {
		c.logger.Error("failed to load last exchange",
			"session_id", sessionID,
			"error", err)
		return
	}
	if dedupe.Exchange(last, botQuestion, utterance, now, c.opts.ExchangeDupWindow) {
		c.logger.Info("duplicate exchange suppressed",
			"user_id", userID,
			"session_id", sessionID)
		return
	}

	e := &database.Exchange{
		UserID:         userID,
		SessionID:      sessionID,
		UserAnswer:     utterance,
		ResponseTimeMS: responseTime,
		Timestamp:      now,
	}
	if botQuestion != nil {
		e.BotQuestion = sql.NullString{String: *botQuestion, Valid: true}
	}
	if err := c.store.InsertExchange(ctx, e); err != nil {
		c.logger.Error("failed to insert exchange",
			"session_id", sessionID,
			"error", err)
	}
}

// recordMessage appends one transcript message unless the duplicate
// guard suppresses it.
func (c *Coordinator) recordMessage(ctx context.Context, transcriptID int64, sender, text string, now time.Time) {
	last, err := c.store.LastMessage(ctx, transcriptID)
	if err != nil {
		c.logger.Error("failed to load last message",
			"transcript_id", transcriptID,
			"error", err)
		return
	}
	if dedupe.Message(last, sender, text, now, c.opts.MessageDupWindow) {
		c.logger.Info("duplicate message suppressed",
			"transcript_id", transcriptID,
			"sender", sender)
		return
	}
	if err := c.store.AppendMessage(ctx, transcriptID, sender, text); err != nil {
		c.logger.Error("failed to append message",
			"transcript_id", transcriptID,
			"sender", sender,
			"error", err)
	}
}

// Session is the transcript read model served by the history endpoints.
type Session struct {
	Transcript *database.Transcript
	Messages   []database.TranscriptMessage
	Policies   []string
}

// SessionInfo returns one session with its full message sequence.
func (c *Coordinator) SessionInfo(ctx context.Context, userID, sessionID string) (*Session, error) {
	transcript, err := c.store.GetTranscript(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	messages, err := c.store.GetMessages(ctx, transcript.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	policies, err := c.store.GetPolicies(ctx, transcript.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}
	return &Session{Transcript: transcript, Messages: messages, Policies: policies}, nil
}

// ListSessions returns all of a user's transcripts, most recent first.
func (c *Coordinator) ListSessions(ctx context.Context, userID string) ([]database.Transcript, error) {
	return c.store.ListTranscriptsByUser(ctx, userID)
}

// StateView is an intake state plus its derived progress numbers, which
// are computed at read time rather than stored.
type StateView struct {
	State          *database.IntakeState
	AnsweredCount  int
	CompletionRate float64
}

// GetState returns one session's intake state with derived stats.
func (c *Coordinator) GetState(ctx context.Context, userID, sessionID string) (*StateView, error) {
	state, err := c.store.GetIntakeState(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return &StateView{
		State:          state,
		AnsweredCount:  intake.AnsweredCount(state),
		CompletionRate: intake.CompletionRate(state),
	}, nil
}

// ListStates returns all of a user's intake states with derived stats.
func (c *Coordinator) ListStates(ctx context.Context, userID string) ([]StateView, error) {
	states, err := c.store.ListIntakeStatesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]StateView, 0, len(states))
	for i := range states {
		views = append(views, StateView{
			State:          &states[i],
			AnsweredCount:  intake.AnsweredCount(&states[i]),
			CompletionRate: intake.CompletionRate(&states[i]),
		})
	}
	return views, nil
}
