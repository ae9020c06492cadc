package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

func (s *sqlxStore) CreateIntakeState(ctx context.Context, userID, sessionID string, seed []IntakeQuestion) (bool, error) {
	if userID == "" || sessionID == "" {
		return false, fmt.Errorf("intake state must have user_id and session_id")
	}
	if len(seed) == 0 {
		return false, fmt.Errorf("intake state seed cannot be empty")
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	res, err := tx.ExecContext(ctx, `
        INSERT INTO intake_states (user_id, session_id, is_completed, created_at, updated_at)
        VALUES (?, ?, 0, ?, ?)
        ON CONFLICT (user_id, session_id) DO NOTHING;
    `, userID, sessionID, now, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting intake state",
			"user_id", userID, "session_id", sessionID, "error", err)
		return false, fmt.Errorf("failed to insert intake state (%s/%s): %w", userID, sessionID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		s.logger.DebugContext(ctx, "Attached to existing intake state",
			"user_id", userID, "session_id", sessionID)
		return false, nil
	}

	stateID, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to read intake state id: %w", err)
	}

	for _, q := range seed {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO intake_questions (state_id, question_id, question_text, experience, status, raw_user_input, updated)
            VALUES (?, ?, ?, ?, ?, ?, 0);
        `, stateID, q.QuestionID, q.QuestionText, q.Experience, q.Status, q.RawUserInput); err != nil {
			return false, fmt.Errorf("failed to seed question %s: %w", q.QuestionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Created intake state",
		"user_id", userID, "session_id", sessionID, "state_id", stateID, "questions", len(seed))
	return true, nil
}

func (s *sqlxStore) GetIntakeState(ctx context.Context, userID, sessionID string) (*IntakeState, error) {
	var st IntakeState
	err := s.db.GetContext(ctx, &st, `
        SELECT * FROM intake_states WHERE user_id = ? AND session_id = ?;
    `, userID, sessionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("intake state %s/%s: %w", userID, sessionID, ErrNotFound)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting intake state",
			"user_id", userID, "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("failed to get intake state %s/%s: %w", userID, sessionID, err)
	}

	if err := s.loadQuestions(ctx, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *sqlxStore) ListIntakeStatesByUser(ctx context.Context, userID string) ([]IntakeState, error) {
	var states []IntakeState
	err := s.db.SelectContext(ctx, &states, `
        SELECT * FROM intake_states WHERE user_id = ? ORDER BY updated_at DESC;
    `, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing intake states", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list intake states for %s: %w", userID, err)
	}

	for i := range states {
		if err := s.loadQuestions(ctx, &states[i]); err != nil {
			return nil, err
		}
	}
	return states, nil
}

func (s *sqlxStore) loadQuestions(ctx context.Context, st *IntakeState) error {
	err := s.db.SelectContext(ctx, &st.Questions, `
        SELECT * FROM intake_questions WHERE state_id = ? ORDER BY id ASC;
    `, st.ID)
	if err != nil {
		return fmt.Errorf("failed to load questions for intake state %d: %w", st.ID, err)
	}
	return nil
}

func (s *sqlxStore) UpdateIntakeState(ctx context.Context, st *IntakeState) error {
	if st == nil {
		return fmt.Errorf("cannot update nil intake state")
	}
	if st.ID == 0 {
		return fmt.Errorf("intake state must have an id")
	}

	now := time.Now().UTC()
	st.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	res, err := tx.NamedExecContext(ctx, `
        UPDATE intake_states SET
            is_completed = :is_completed,
            completed_at = :completed_at,
            last_answered_question = :last_answered_question,
            last_asked_question = :last_asked_question,
            updated_at = :updated_at
        WHERE id = :id;
    `, st)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating intake state", "state_id", st.ID, "error", err)
		return fmt.Errorf("failed to update intake state %d: %w", st.ID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("intake state %d: %w", st.ID, ErrNotFound)
	}

	for i := range st.Questions {
		q := &st.Questions[i]
		if _, err := tx.NamedExecContext(ctx, `
            UPDATE intake_questions SET
                experience = :experience,
                status = :status,
                raw_user_input = :raw_user_input,
                frequency = :frequency,
                context = :context,
                note = :note,
                conflict = :conflict,
                updated = :updated
            WHERE state_id = :state_id AND question_id = :question_id;
        `, q); err != nil {
			return fmt.Errorf("failed to update question %s of state %d: %w", q.QuestionID, st.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Intake state updated",
		"state_id", st.ID, "is_completed", st.IsCompleted)
	return nil
}

func (s *sqlxStore) DeleteIntakeStates(ctx context.Context, userID string, sessionIDs []string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("user_id cannot be empty")
	}
	if len(sessionIDs) == 0 {
		return 0, fmt.Errorf("sessionIDs cannot be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	query, args, err := sqlx.In(`
        DELETE FROM intake_questions WHERE state_id IN (
            SELECT id FROM intake_states WHERE user_id = ? AND session_id IN (?)
        );
    `, userID, sessionIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to build question delete query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to delete intake questions: %w", err)
	}

	query, args, err = sqlx.In(`DELETE FROM intake_states WHERE user_id = ? AND session_id IN (?);`, userID, sessionIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to build state delete query: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete intake states: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted state count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Deleted intake states",
		"user_id", userID, "sessions", len(sessionIDs), "states_deleted", deleted)
	return deleted, nil
}
