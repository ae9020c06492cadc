package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// getSummary handles GET /api/summary/{userId}/{sessionId}: serves the
// cached report or generates one upstream.
func (h *Handler) getSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	sessionID := chi.URLParam(r, "sessionId")

	res, err := h.coord.GetReport(r.Context(), userID, sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"from_cache": res.FromCache,
		"data":       newReportView(res.Report),
	})
}

// regenerateSummary handles POST /api/summary/regenerate/{userId}/{sessionId}.
func (h *Handler) regenerateSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	sessionID := chi.URLParam(r, "sessionId")

	res, err := h.coord.RegenerateReport(r.Context(), userID, sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"from_cache": false,
		"data":       newReportView(res.Report),
	})
}

// invalidateSummary handles DELETE /api/summary/cache/{userId}/{sessionId}.
func (h *Handler) invalidateSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	sessionID := chi.URLParam(r, "sessionId")

	if err := h.coord.InvalidateReport(r.Context(), userID, sessionID); err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true})
}

// summaryStatus handles GET /api/summary/status/{userId}/{sessionId}.
func (h *Handler) summaryStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	sessionID := chi.URLParam(r, "sessionId")

	status, err := h.coord.GetReportStatus(r.Context(), userID, sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"has_summary":  status.HasSummary,
		"generated_at": status.GeneratedAt,
	})
}
