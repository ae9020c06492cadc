package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dajeong-health/intake-server/internal/database"
)

type createFeedbackRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// createFeedback handles POST /api/error-report.
func (h *Handler) createFeedback(w http.ResponseWriter, r *http.Request) {
	var req createFeedbackRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	report := &database.FeedbackReport{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Message:   req.Message,
		Status:    database.FeedbackPending,
		Timestamp: time.Now().UTC(),
	}
	if err := h.store.InsertFeedback(r.Context(), report); err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"report":  newFeedbackView(report),
	})
}

// listFeedback handles GET /api/error-report with optional status,
// page, and limit query parameters.
func (h *Handler) listFeedback(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	reports, total, err := h.store.ListFeedback(r.Context(), status, page, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	views := make([]feedbackView, 0, len(reports))
	for i := range reports {
		views = append(views, newFeedbackView(&reports[i]))
	}
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"reports": views,
		"pagination": map[string]any{
			"page":  max(page, 1),
			"total": total,
		},
	})
}

type updateFeedbackRequest struct {
	Status string `json:"status"`
}

// updateFeedback handles PATCH /api/error-report/{reportId}.
func (h *Handler) updateFeedback(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportId")

	var req updateFeedbackRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Status {
	case database.FeedbackPending, database.FeedbackInProgress, database.FeedbackResolved:
	default:
		Error(w, http.StatusBadRequest, "status must be pending, in_progress, or resolved")
		return
	}

	report, err := h.store.UpdateFeedbackStatus(r.Context(), reportID, req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"report":  newFeedbackView(report),
	})
}

// deleteFeedback handles DELETE /api/error-report/{reportId}.
func (h *Handler) deleteFeedback(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportId")

	if err := h.store.DeleteFeedback(r.Context(), reportID); err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true})
}
