package httpapi

import (
	"time"

	"github.com/dajeong-health/intake-server/internal/conversation"
	"github.com/dajeong-health/intake-server/internal/database"
	"github.com/dajeong-health/intake-server/internal/intake"
)

// sessionView is the transcript read model without its messages.
type sessionView struct {
	UserID            string    `json:"user_id"`
	SessionID         string    `json:"session_id"`
	IsActive          bool      `json:"is_active"`
	IsFinished        bool      `json:"is_finished"`
	MessageCount      int       `json:"message_count"`
	TotalDuration     int64     `json:"total_duration"`
	TonePreference    string    `json:"tone_preference"`
	ConversationStyle string    `json:"conversation_style"`
	HasSummary        bool      `json:"has_summary"`
	CreatedAt         time.Time `json:"created_at"`
	LastActivity      time.Time `json:"last_activity"`
}

func newSessionView(t *database.Transcript) sessionView {
	return sessionView{
		UserID:            t.UserID,
		SessionID:         t.SessionID,
		IsActive:          t.IsActive,
		IsFinished:        t.IsFinished,
		MessageCount:      t.MessageCount,
		TotalDuration:     t.TotalDuration,
		TonePreference:    t.TonePreference,
		ConversationStyle: t.ConversationStyle,
		HasSummary:        t.Report() != nil,
		CreatedAt:         t.CreatedAt,
		LastActivity:      t.LastActivity,
	}
}

type messageView struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func newMessageViews(messages []database.TranscriptMessage) []messageView {
	views := make([]messageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, messageView{Sender: m.Sender, Text: m.Text, Timestamp: m.Timestamp})
	}
	return views
}

// stateView is the intake state read model, including progress numbers
// derived at read time.
type stateView struct {
	UserID               string                    `json:"user_id"`
	SessionID            string                    `json:"session_id"`
	IsCompleted          bool                      `json:"is_completed"`
	CompletedAt          *time.Time                `json:"completed_at"`
	LastAnsweredQuestion *string                   `json:"last_answered_question"`
	LastAskedQuestion    *string                   `json:"last_asked_question"`
	AnsweredCount        int                       `json:"answered_count"`
	CompletionRate       float64                   `json:"completion_rate"`
	Questions            []intake.QuestionSnapshot `json:"questions"`
}

func newStateView(v *conversation.StateView) stateView {
	st := v.State
	out := stateView{
		UserID:         st.UserID,
		SessionID:      st.SessionID,
		IsCompleted:    st.IsCompleted,
		AnsweredCount:  v.AnsweredCount,
		CompletionRate: v.CompletionRate,
		Questions:      intake.Snapshot(st).Questions,
	}
	if st.CompletedAt.Valid {
		t := st.CompletedAt.Time
		out.CompletedAt = &t
	}
	if st.LastAnsweredQuestion.Valid {
		s := st.LastAnsweredQuestion.String
		out.LastAnsweredQuestion = &s
	}
	if st.LastAskedQuestion.Valid {
		s := st.LastAskedQuestion.String
		out.LastAskedQuestion = &s
	}
	return out
}

type reportView struct {
	Depression  string    `json:"depression"`
	Anxiety     string    `json:"anxiety"`
	Suggestion  string    `json:"suggestion"`
	GeneratedAt time.Time `json:"generated_at"`
}

func newReportView(r *database.Report) reportView {
	return reportView{
		Depression:  r.Depression,
		Anxiety:     r.Anxiety,
		Suggestion:  r.Suggestion,
		GeneratedAt: r.GeneratedAt,
	}
}

type feedbackView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newFeedbackView(r *database.FeedbackReport) feedbackView {
	return feedbackView{
		ID:        r.ID,
		UserID:    r.UserID,
		SessionID: r.SessionID,
		Message:   r.Message,
		Status:    r.Status,
		Timestamp: r.Timestamp,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
