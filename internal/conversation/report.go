package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/dajeong-health/intake-server/internal/database"
)

// ReportResult is a clinical summary plus where it came from.
type ReportResult struct {
	Report    *database.Report
	FromCache bool
}

// GetReport returns the session's summary, serving the cached copy when
// one exists and otherwise generating it upstream. A freshly generated
// report is persisted best-effort: a failed save still returns the
// report to the caller.
func (c *Coordinator) GetReport(ctx context.Context, userID, sessionID string) (*ReportResult, error) {
	transcript, err := c.store.GetTranscript(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if cached := transcript.Report(); cached != nil {
		c.logger.Debug("report served from cache",
			"user_id", userID,
			"session_id", sessionID)
		return &ReportResult{Report: cached, FromCache: true}, nil
	}

	return c.generateReport(ctx, transcript)
}

// RegenerateReport discards any cached summary and generates a fresh one
// upstream, even when the cache was populated.
func (c *Coordinator) RegenerateReport(ctx context.Context, userID, sessionID string) (*ReportResult, error) {
	transcript, err := c.store.GetTranscript(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := c.store.ClearReport(ctx, transcript.ID); err != nil {
		c.logger.Error("failed to clear cached report",
			"session_id", sessionID,
			"error", err)
	}

	return c.generateReport(ctx, transcript)
}

// InvalidateReport clears the cached summary unconditionally.
func (c *Coordinator) InvalidateReport(ctx context.Context, userID, sessionID string) error {
	transcript, err := c.store.GetTranscript(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if err := c.store.ClearReport(ctx, transcript.ID); err != nil {
		return fmt.Errorf("failed to clear cached report: %w", err)
	}
	c.logger.Info("report cache invalidated",
		"user_id", userID,
		"session_id", sessionID)
	return nil
}

// ReportStatus says whether a summary is cached for the session, and when
// it was generated.
type ReportStatus struct {
	HasSummary  bool
	GeneratedAt *time.Time
}

// GetReportStatus probes the cache without triggering generation.
func (c *Coordinator) GetReportStatus(ctx context.Context, userID, sessionID string) (*ReportStatus, error) {
	transcript, err := c.store.GetTranscript(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	status := &ReportStatus{}
	if cached := transcript.Report(); cached != nil {
		status.HasSummary = true
		generatedAt := cached.GeneratedAt
		status.GeneratedAt = &generatedAt
	}
	return status, nil
}

func (c *Coordinator) generateReport(ctx context.Context, transcript *database.Transcript) (*ReportResult, error) {
	summary, err := c.engine.Summarize(ctx, transcript.UserID, transcript.SessionID)
	if err != nil {
		return nil, err
	}

	report := &database.Report{
		Depression:  summary.Depression,
		Anxiety:     summary.Anxiety,
		Suggestion:  summary.Suggestion,
		GeneratedAt: time.Now().UTC(),
	}
	if err := c.store.SaveReport(ctx, transcript.ID, report); err != nil {
		c.logger.Error("failed to persist generated report",
			"session_id", transcript.SessionID,
			"error", err)
	}

	return &ReportResult{Report: report, FromCache: false}, nil
}
