package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the data access layer over the four conversation views
// (transcripts, exchanges, intake states, cached reports) plus users and
// feedback reports. Methods accept context.Context for cancellation and
// timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// EnsureUser creates the identity record if it does not exist yet.
	EnsureUser(ctx context.Context, userID, displayName string) error

	// CreateTranscript atomically creates the transcript for its
	// (user, session) key, seeding the greeting as the first bot message.
	// When the key already exists it only touches last_activity and
	// reports created=false. Concurrent callers with the same key never
	// produce duplicate rows.
	CreateTranscript(ctx context.Context, t *Transcript, greeting string) (created bool, err error)

	GetTranscript(ctx context.Context, userID, sessionID string) (*Transcript, error)
	ListTranscriptsByUser(ctx context.Context, userID string) ([]Transcript, error)

	// GetMessages returns the full ordered message sequence for a transcript.
	GetMessages(ctx context.Context, transcriptID int64) ([]TranscriptMessage, error)

	// LastMessage returns the most recent message, or nil when the
	// transcript has none.
	LastMessage(ctx context.Context, transcriptID int64) (*TranscriptMessage, error)

	// AppendMessage appends one message and recomputes message_count and
	// total_duration in the same transaction.
	AppendMessage(ctx context.Context, transcriptID int64, sender, text string) error

	// TouchActivity updates last_activity and recomputes total_duration.
	TouchActivity(ctx context.Context, transcriptID int64) error

	// MarkFinished flips the transcript to finished/inactive. The flip is
	// one-way; calling it on an already-finished transcript is a no-op.
	MarkFinished(ctx context.Context, transcriptID int64) error

	SetTonePreference(ctx context.Context, transcriptID int64, tone string) error
	SetConversationStyle(ctx context.Context, transcriptID int64, style string) error

	// AppendPolicies appends policy tags to the session's ordered policy
	// history. Duplicates are allowed.
	AppendPolicies(ctx context.Context, transcriptID int64, policies []string) error
	GetPolicies(ctx context.Context, transcriptID int64) ([]string, error)

	SaveReport(ctx context.Context, transcriptID int64, r *Report) error
	ClearReport(ctx context.Context, transcriptID int64) error

	// InsertExchange appends one paired-log entry. Entries are immutable.
	InsertExchange(ctx context.Context, e *Exchange) error

	// LastExchange returns the most recent paired-log entry for the key,
	// or nil when none exists.
	LastExchange(ctx context.Context, userID, sessionID string) (*Exchange, error)

	// CreateIntakeState atomically creates the intake state for its key,
	// seeding the given questions. Same create-or-attach discipline as
	// CreateTranscript.
	CreateIntakeState(ctx context.Context, userID, sessionID string, seed []IntakeQuestion) (created bool, err error)

	GetIntakeState(ctx context.Context, userID, sessionID string) (*IntakeState, error)
	ListIntakeStatesByUser(ctx context.Context, userID string) ([]IntakeState, error)

	// UpdateIntakeState persists the container scalars and all question
	// rows of st. Callers are expected to skip the call entirely when
	// nothing changed.
	UpdateIntakeState(ctx context.Context, st *IntakeState) error

	// DeleteConversations removes transcripts (with their messages and
	// policy tags) and paired-log entries for the given sessions of one
	// user, returning the number of transcripts and exchanges removed.
	DeleteConversations(ctx context.Context, userID string, sessionIDs []string) (transcripts, exchanges int64, err error)

	// DeleteIntakeStates removes intake states (with their questions) for
	// the given sessions of one user.
	DeleteIntakeStates(ctx context.Context, userID string, sessionIDs []string) (int64, error)

	InsertFeedback(ctx context.Context, r *FeedbackReport) error
	GetFeedback(ctx context.Context, id string) (*FeedbackReport, error)
	ListFeedback(ctx context.Context, status string, page, limit int) ([]FeedbackReport, int64, error)
	UpdateFeedbackStatus(ctx context.Context, id, status string) (*FeedbackReport, error)
	DeleteFeedback(ctx context.Context, id string) error

	// DeactivateStaleTranscripts marks active transcripts with no activity
	// since cutoff as inactive and returns how many were flipped.
	DeactivateStaleTranscripts(ctx context.Context, cutoff time.Time) (int64, error)

	// RunMaintenance performs database maintenance tasks like VACUUM.
	RunMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rollback is the shared deferred-rollback helper for write transactions.
func (s *sqlxStore) rollback(ctx context.Context, tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.WarnContext(ctx, "Error rolling back transaction", "error", err)
	}
}

func (s *sqlxStore) EnsureUser(ctx context.Context, userID, displayName string) error {
	if userID == "" {
		return fmt.Errorf("user_id cannot be empty")
	}
	if displayName == "" {
		displayName = "UNKNOWN"
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO users (user_id, display_name, created_at)
        VALUES (?, ?, ?)
        ON CONFLICT (user_id) DO NOTHING;
    `, userID, displayName, time.Now().UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error ensuring user", "user_id", userID, "error", err)
		return fmt.Errorf("failed to ensure user %s: %w", userID, err)
	}
	return nil
}

func (s *sqlxStore) CreateTranscript(ctx context.Context, t *Transcript, greeting string) (bool, error) {
	if t == nil {
		return false, fmt.Errorf("cannot create nil transcript")
	}
	if t.UserID == "" || t.SessionID == "" {
		return false, fmt.Errorf("transcript must have user_id and session_id")
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	// The ON CONFLICT DO NOTHING insert is the atomicity guarantee: the
	// second of two concurrent creators observes zero affected rows and
	// attaches to the existing record instead.
	res, err := tx.ExecContext(ctx, `
        INSERT INTO transcripts (
            user_id, session_id, user_agent, ip_address,
            is_active, is_finished, message_count, total_duration,
            tone_preference, conversation_style,
            last_activity, created_at, updated_at
        )
        VALUES (?, ?, ?, ?, 1, 0, 1, 0, ?, ?, ?, ?, ?)
        ON CONFLICT (user_id, session_id) DO NOTHING;
    `, t.UserID, t.SessionID, t.UserAgent, t.IPAddress,
		PreferenceUnset, PreferenceUnset, now, now, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting transcript",
			"user_id", t.UserID, "session_id", t.SessionID, "error", err)
		return false, fmt.Errorf("failed to insert transcript (%s/%s): %w", t.UserID, t.SessionID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		// Existing record: only refresh the last-activity marker.
		if _, err := tx.ExecContext(ctx, `
            UPDATE transcripts SET last_activity = ?, updated_at = ?
            WHERE user_id = ? AND session_id = ?;
        `, now, now, t.UserID, t.SessionID); err != nil {
			return false, fmt.Errorf("failed to touch existing transcript (%s/%s): %w", t.UserID, t.SessionID, err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		s.logger.DebugContext(ctx, "Attached to existing transcript",
			"user_id", t.UserID, "session_id", t.SessionID)
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to read transcript id: %w", err)
	}
	t.ID = id

	// Seed the greeting as the first bot message. message_count was set
	// to 1 on insert to match.
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO transcript_messages (transcript_id, sender, text, timestamp)
        VALUES (?, ?, ?, ?);
    `, id, SenderBot, greeting, now); err != nil {
		return false, fmt.Errorf("failed to seed greeting message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Created transcript",
		"user_id", t.UserID, "session_id", t.SessionID, "transcript_id", id)
	return true, nil
}

func (s *sqlxStore) GetTranscript(ctx context.Context, userID, sessionID string) (*Transcript, error) {
	var t Transcript
	err := s.db.GetContext(ctx, &t, `
        SELECT * FROM transcripts WHERE user_id = ? AND session_id = ?;
    `, userID, sessionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("transcript %s/%s: %w", userID, sessionID, ErrNotFound)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting transcript",
			"user_id", userID, "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("failed to get transcript %s/%s: %w", userID, sessionID, err)
	}
	return &t, nil
}

func (s *sqlxStore) ListTranscriptsByUser(ctx context.Context, userID string) ([]Transcript, error) {
	var ts []Transcript
	err := s.db.SelectContext(ctx, &ts, `
        SELECT * FROM transcripts WHERE user_id = ? ORDER BY created_at DESC;
    `, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing transcripts", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list transcripts for %s: %w", userID, err)
	}
	return ts, nil
}

func (s *sqlxStore) GetMessages(ctx context.Context, transcriptID int64) ([]TranscriptMessage, error) {
	var msgs []TranscriptMessage
	err := s.db.SelectContext(ctx, &msgs, `
        SELECT * FROM transcript_messages
        WHERE transcript_id = ?
        ORDER BY timestamp ASC, id ASC;
    `, transcriptID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting messages", "transcript_id", transcriptID, "error", err)
		return nil, fmt.Errorf("failed to get messages for transcript %d: %w", transcriptID, err)
	}
	return msgs, nil
}

func (s *sqlxStore) LastMessage(ctx context.Context, transcriptID int64) (*TranscriptMessage, error) {
	var m TranscriptMessage
	err := s.db.GetContext(ctx, &m, `
        SELECT * FROM transcript_messages
        WHERE transcript_id = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT 1;
    `, transcriptID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get last message for transcript %d: %w", transcriptID, err)
	}
	return &m, nil
}

func (s *sqlxStore) AppendMessage(ctx context.Context, transcriptID int64, sender, text string) error {
	if sender != SenderUser && sender != SenderBot {
		return fmt.Errorf("invalid sender %q", sender)
	}
	if text == "" {
		return fmt.Errorf("message text cannot be empty")
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO transcript_messages (transcript_id, sender, text, timestamp)
        VALUES (?, ?, ?, ?);
    `, transcriptID, sender, text, now); err != nil {
		s.logger.ErrorContext(ctx, "Error appending message",
			"transcript_id", transcriptID, "sender", sender, "error", err)
		return fmt.Errorf("failed to append message to transcript %d: %w", transcriptID, err)
	}

	// message_count is a stored cache of the sequence length and
	// total_duration is seconds since creation; both are recomputed on
	// every append rather than incremented. created_at is read back and
	// the elapsed time computed in Go since the driver binds timestamps
	// in a format sqlite's date functions cannot parse.
	var createdAt time.Time
	if err := tx.GetContext(ctx, &createdAt, `
        SELECT created_at FROM transcripts WHERE id = ?;
    `, transcriptID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("transcript %d: %w", transcriptID, ErrNotFound)
		}
		return fmt.Errorf("failed to load transcript %d: %w", transcriptID, err)
	}

	if _, err := tx.ExecContext(ctx, `
        UPDATE transcripts SET
            message_count = (SELECT COUNT(*) FROM transcript_messages WHERE transcript_id = ?),
            total_duration = ?,
            last_activity = ?,
            updated_at = ?
        WHERE id = ?;
    `, transcriptID, int64(now.Sub(createdAt).Seconds()), now, now, transcriptID); err != nil {
		return fmt.Errorf("failed to recompute transcript %d counters: %w", transcriptID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Message appended",
		"transcript_id", transcriptID, "sender", sender)
	return nil
}

func (s *sqlxStore) TouchActivity(ctx context.Context, transcriptID int64) error {
	now := time.Now().UTC()

	var createdAt time.Time
	if err := s.db.GetContext(ctx, &createdAt, `
        SELECT created_at FROM transcripts WHERE id = ?;
    `, transcriptID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("transcript %d: %w", transcriptID, ErrNotFound)
		}
		return fmt.Errorf("failed to load transcript %d: %w", transcriptID, err)
	}

	if _, err := s.db.ExecContext(ctx, `
        UPDATE transcripts SET
            total_duration = ?,
            last_activity = ?,
            updated_at = ?
        WHERE id = ?;
    `, int64(now.Sub(createdAt).Seconds()), now, now, transcriptID); err != nil {
		return fmt.Errorf("failed to touch transcript %d: %w", transcriptID, err)
	}
	return nil
}

func (s *sqlxStore) MarkFinished(ctx context.Context, transcriptID int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
        UPDATE transcripts SET is_finished = 1, is_active = 0, updated_at = ?
        WHERE id = ? AND is_finished = 0;
    `, now, transcriptID)
	if err != nil {
		return fmt.Errorf("failed to mark transcript %d finished: %w", transcriptID, err)
	}
	return nil
}

func (s *sqlxStore) SetTonePreference(ctx context.Context, transcriptID int64, tone string) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE transcripts SET tone_preference = ?, updated_at = ? WHERE id = ?;
    `, tone, time.Now().UTC(), transcriptID)
	if err != nil {
		return fmt.Errorf("failed to set tone preference for transcript %d: %w", transcriptID, err)
	}
	return nil
}

func (s *sqlxStore) SetConversationStyle(ctx context.Context, transcriptID int64, style string) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE transcripts SET conversation_style = ?, updated_at = ? WHERE id = ?;
    `, style, time.Now().UTC(), transcriptID)
	if err != nil {
		return fmt.Errorf("failed to set conversation style for transcript %d: %w", transcriptID, err)
	}
	return nil
}

func (s *sqlxStore) AppendPolicies(ctx context.Context, transcriptID int64, policies []string) error {
	if len(policies) == 0 {
		return nil
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	for _, p := range policies {
		if p == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO transcript_policies (transcript_id, policy, created_at)
            VALUES (?, ?, ?);
        `, transcriptID, p, now); err != nil {
			return fmt.Errorf("failed to append policy %q to transcript %d: %w", p, transcriptID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *sqlxStore) GetPolicies(ctx context.Context, transcriptID int64) ([]string, error) {
	var policies []string
	err := s.db.SelectContext(ctx, &policies, `
        SELECT policy FROM transcript_policies
        WHERE transcript_id = ?
        ORDER BY id ASC;
    `, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get policies for transcript %d: %w", transcriptID, err)
	}
	return policies, nil
}

func (s *sqlxStore) SaveReport(ctx context.Context, transcriptID int64, r *Report) error {
	if r == nil {
		return fmt.Errorf("cannot save nil report")
	}
	_, err := s.db.ExecContext(ctx, `
        UPDATE transcripts SET
            report_depression = ?,
            report_anxiety = ?,
            report_suggestion = ?,
            report_generated_at = ?,
            updated_at = ?
        WHERE id = ?;
    `, r.Depression, r.Anxiety, r.Suggestion, r.GeneratedAt, time.Now().UTC(), transcriptID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving report", "transcript_id", transcriptID, "error", err)
		return fmt.Errorf("failed to save report for transcript %d: %w", transcriptID, err)
	}
	return nil
}

func (s *sqlxStore) ClearReport(ctx context.Context, transcriptID int64) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE transcripts SET
            report_depression = NULL,
            report_anxiety = NULL,
            report_suggestion = NULL,
            report_generated_at = NULL,
            updated_at = ?
        WHERE id = ?;
    `, time.Now().UTC(), transcriptID)
	if err != nil {
		return fmt.Errorf("failed to clear report for transcript %d: %w", transcriptID, err)
	}
	return nil
}

func (s *sqlxStore) InsertExchange(ctx context.Context, e *Exchange) error {
	if e == nil {
		return fmt.Errorf("cannot insert nil exchange")
	}
	if e.UserID == "" || e.SessionID == "" {
		return fmt.Errorf("exchange must have user_id and session_id")
	}
	if e.UserAnswer == "" {
		return fmt.Errorf("exchange must have a user answer")
	}

	now := time.Now().UTC()
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.CreatedAt = now

	res, err := s.db.NamedExecContext(ctx, `
        INSERT INTO exchanges (user_id, session_id, bot_question, user_answer, response_time_ms, timestamp, created_at)
        VALUES (:user_id, :session_id, :bot_question, :user_answer, :response_time_ms, :timestamp, :created_at);
    `, e)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting exchange",
			"user_id", e.UserID, "session_id", e.SessionID, "error", err)
		return fmt.Errorf("failed to insert exchange (%s/%s): %w", e.UserID, e.SessionID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (s *sqlxStore) LastExchange(ctx context.Context, userID, sessionID string) (*Exchange, error) {
	var e Exchange
	err := s.db.GetContext(ctx, &e, `
        SELECT * FROM exchanges
        WHERE user_id = ? AND session_id = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT 1;
    `, userID, sessionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get last exchange (%s/%s): %w", userID, sessionID, err)
	}
	return &e, nil
}

func (s *sqlxStore) DeleteConversations(ctx context.Context, userID string, sessionIDs []string) (int64, int64, error) {
	if userID == "" {
		return 0, 0, fmt.Errorf("user_id cannot be empty")
	}
	if len(sessionIDs) == 0 {
		return 0, 0, fmt.Errorf("sessionIDs cannot be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	// Child rows first; foreign keys are not enforced on every connection.
	for _, table := range []string{"transcript_messages", "transcript_policies"} {
		query, args, err := sqlx.In(fmt.Sprintf(`
            DELETE FROM %s WHERE transcript_id IN (
                SELECT id FROM transcripts WHERE user_id = ? AND session_id IN (?)
            );
        `, table), userID, sessionIDs)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to build %s delete query: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return 0, 0, fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	query, args, err := sqlx.In(`DELETE FROM transcripts WHERE user_id = ? AND session_id IN (?);`, userID, sessionIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build transcript delete query: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete transcripts: %w", err)
	}
	transcripts, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read deleted transcript count: %w", err)
	}

	query, args, err = sqlx.In(`DELETE FROM exchanges WHERE user_id = ? AND session_id IN (?);`, userID, sessionIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build exchange delete query: %w", err)
	}
	res, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete exchanges: %w", err)
	}
	exchanges, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read deleted exchange count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Deleted conversations",
		"user_id", userID, "sessions", len(sessionIDs),
		"transcripts_deleted", transcripts, "exchanges_deleted", exchanges)
	return transcripts, exchanges, nil
}

func (s *sqlxStore) DeactivateStaleTranscripts(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
        UPDATE transcripts SET is_active = 0, updated_at = ?
        WHERE is_active = 1 AND last_activity < ?;
    `, time.Now().UTC(), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate stale transcripts: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deactivated count: %w", err)
	}
	if affected > 0 {
		s.logger.InfoContext(ctx, "Deactivated stale transcripts", "count", affected, "cutoff", cutoff)
	}
	return affected, nil
}

// RunMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
