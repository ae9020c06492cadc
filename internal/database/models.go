package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Message senders.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Sentinel value for tone/style preferences the user has not picked yet.
const PreferenceUnset = "미선택"

// Transcript is the per-session conversation record. One row exists per
// (user_id, session_id) pair; messages and policy tags live in child tables.
// The generated report is embedded as nullable columns and counts as present
// only when depression, anxiety, and suggestion are all non-empty.
type Transcript struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID            string `db:"user_id"`
	SessionID         string `db:"session_id"`
	UserAgent         string `db:"user_agent"`
	IPAddress         string `db:"ip_address"`
	IsActive          bool   `db:"is_active"`
	IsFinished        bool   `db:"is_finished"`
	MessageCount      int    `db:"message_count"`
	TotalDuration     int64  `db:"total_duration"` // seconds since creation, recomputed on activity
	TonePreference    string `db:"tone_preference"`
	ConversationStyle string `db:"conversation_style"`

	ReportDepression  sql.NullString `db:"report_depression"`
	ReportAnxiety     sql.NullString `db:"report_anxiety"`
	ReportSuggestion  sql.NullString `db:"report_suggestion"`
	ReportGeneratedAt sql.NullTime   `db:"report_generated_at"`

	LastActivity time.Time `db:"last_activity"`
}

// Report is the cached generated summary embedded in a Transcript.
type Report struct {
	Depression  string    `json:"depression"`
	Anxiety     string    `json:"anxiety"`
	Suggestion  string    `json:"suggestion"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Report returns the embedded report, or nil when any of the three
// sections is missing.
func (t *Transcript) Report() *Report {
	if !t.ReportDepression.Valid || t.ReportDepression.String == "" ||
		!t.ReportAnxiety.Valid || t.ReportAnxiety.String == "" ||
		!t.ReportSuggestion.Valid || t.ReportSuggestion.String == "" {
		return nil
	}
	return &Report{
		Depression:  t.ReportDepression.String,
		Anxiety:     t.ReportAnxiety.String,
		Suggestion:  t.ReportSuggestion.String,
		GeneratedAt: t.ReportGeneratedAt.Time,
	}
}

// ConversationID is the identifier used when talking to the AI service.
func (t *Transcript) ConversationID() string {
	return fmt.Sprintf("conv_%s_%s", t.UserID, t.SessionID)
}

// TranscriptMessage is one entry in a transcript's ordered message sequence.
type TranscriptMessage struct {
	ID           int64     `db:"id"`
	TranscriptID int64     `db:"transcript_id"`
	Sender       string    `db:"sender"`
	Text         string    `db:"text"`
	Timestamp    time.Time `db:"timestamp"`
}

// Exchange is one append-only paired-log entry: the bot question that was
// on screen and the user answer it provoked. BotQuestion is null only for
// the very first turn, where the user is replying to the greeting.
type Exchange struct {
	ID             int64          `db:"id"`
	UserID         string         `db:"user_id"`
	SessionID      string         `db:"session_id"`
	BotQuestion    sql.NullString `db:"bot_question"`
	UserAnswer     string         `db:"user_answer"`
	ResponseTimeMS int64          `db:"response_time_ms"`
	Timestamp      time.Time      `db:"timestamp"`
	CreatedAt      time.Time      `db:"created_at"`
}

// IntakeState tracks questionnaire progress for one (user, session) pair.
type IntakeState struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID               string         `db:"user_id"`
	SessionID            string         `db:"session_id"`
	IsCompleted          bool           `db:"is_completed"`
	CompletedAt          sql.NullTime   `db:"completed_at"`
	LastAnsweredQuestion sql.NullString `db:"last_answered_question"`
	LastAskedQuestion    sql.NullString `db:"last_asked_question"`

	Questions []IntakeQuestion `db:"-"`
}

// IntakeQuestion is one questionnaire item inside an IntakeState.
type IntakeQuestion struct {
	ID      int64 `db:"id"`
	StateID int64 `db:"state_id"`

	QuestionID   string         `db:"question_id"`
	QuestionText string         `db:"question_text"`
	Experience   string         `db:"experience"`
	Status       string         `db:"status"`
	RawUserInput StringList     `db:"raw_user_input"`
	Frequency    sql.NullString `db:"frequency"`
	Context      sql.NullString `db:"context"`
	Note         sql.NullString `db:"note"`
	Conflict     sql.NullString `db:"conflict"`
	Updated      bool           `db:"updated"`
}

// StringList stores an ordered list of strings as a JSON array column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		return json.Unmarshal([]byte(v), l)
	case []byte:
		return json.Unmarshal(v, l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
}

// User is the minimal identity record, created lazily on first session start.
type User struct {
	UserID      string    `db:"user_id"`
	DisplayName string    `db:"display_name"`
	CreatedAt   time.Time `db:"created_at"`
}

// Feedback report statuses.
const (
	FeedbackPending    = "pending"
	FeedbackInProgress = "in_progress"
	FeedbackResolved   = "resolved"
)

// FeedbackReport is a free-text report filed by a user about a session.
type FeedbackReport struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID    string    `db:"user_id"`
	SessionID string    `db:"session_id"`
	Message   string    `db:"message"`
	Status    string    `db:"status"`
	Timestamp time.Time `db:"timestamp"`
}
