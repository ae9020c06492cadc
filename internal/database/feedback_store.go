package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *sqlxStore) InsertFeedback(ctx context.Context, r *FeedbackReport) error {
	if r == nil {
		return fmt.Errorf("cannot insert nil feedback report")
	}
	if r.ID == "" {
		return fmt.Errorf("feedback report must have an id")
	}
	if r.UserID == "" || r.SessionID == "" || r.Message == "" {
		return fmt.Errorf("feedback report must have user_id, session_id and message")
	}

	now := time.Now().UTC()
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	if r.Status == "" {
		r.Status = FeedbackPending
	}
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
        INSERT INTO feedback_reports (id, user_id, session_id, message, status, timestamp, created_at, updated_at)
        VALUES (:id, :user_id, :session_id, :message, :status, :timestamp, :created_at, :updated_at);
    `, r)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting feedback report",
			"user_id", r.UserID, "session_id", r.SessionID, "error", err)
		return fmt.Errorf("failed to insert feedback report: %w", err)
	}

	s.logger.InfoContext(ctx, "Feedback report submitted",
		"report_id", r.ID, "user_id", r.UserID, "session_id", r.SessionID)
	return nil
}

func (s *sqlxStore) GetFeedback(ctx context.Context, id string) (*FeedbackReport, error) {
	var r FeedbackReport
	err := s.db.GetContext(ctx, &r, `SELECT * FROM feedback_reports WHERE id = ?;`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("feedback report %s: %w", id, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("failed to get feedback report %s: %w", id, err)
	}
	return &r, nil
}

func (s *sqlxStore) ListFeedback(ctx context.Context, status string, page, limit int) ([]FeedbackReport, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	} else if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	var (
		reports []FeedbackReport
		total   int64
		err     error
	)
	if status != "" {
		err = s.db.SelectContext(ctx, &reports, `
            SELECT * FROM feedback_reports WHERE status = ?
            ORDER BY timestamp DESC LIMIT ? OFFSET ?;
        `, status, limit, offset)
		if err == nil {
			err = s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM feedback_reports WHERE status = ?;`, status)
		}
	} else {
		err = s.db.SelectContext(ctx, &reports, `
            SELECT * FROM feedback_reports
            ORDER BY timestamp DESC LIMIT ? OFFSET ?;
        `, limit, offset)
		if err == nil {
			err = s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM feedback_reports;`)
		}
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing feedback reports", "status", status, "error", err)
		return nil, 0, fmt.Errorf("failed to list feedback reports: %w", err)
	}

	return reports, total, nil
}

func (s *sqlxStore) UpdateFeedbackStatus(ctx context.Context, id, status string) (*FeedbackReport, error) {
	switch status {
	case FeedbackPending, FeedbackInProgress, FeedbackResolved:
	default:
		return nil, fmt.Errorf("invalid feedback status %q", status)
	}

	res, err := s.db.ExecContext(ctx, `
        UPDATE feedback_reports SET status = ?, updated_at = ? WHERE id = ?;
    `, status, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update feedback report %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, fmt.Errorf("feedback report %s: %w", id, ErrNotFound)
	}

	return s.GetFeedback(ctx, id)
}

func (s *sqlxStore) DeleteFeedback(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM feedback_reports WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feedback report %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("feedback report %s: %w", id, ErrNotFound)
	}

	s.logger.InfoContext(ctx, "Feedback report deleted", "report_id", id)
	return nil
}
