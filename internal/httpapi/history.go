package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// listHistory handles GET /api/history/{userId}.
func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	transcripts, err := h.coord.ListSessions(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sessions := make([]sessionView, 0, len(transcripts))
	for i := range transcripts {
		sessions = append(sessions, newSessionView(&transcripts[i]))
	}
	JSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// getHistory handles GET /api/history/{userId}/{sessionId}: one session
// with its full message sequence.
func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	sessionID := chi.URLParam(r, "sessionId")

	session, err := h.coord.SessionInfo(r.Context(), userID, sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"session":  newSessionView(session.Transcript),
		"messages": newMessageViews(session.Messages),
		"policies": session.Policies,
	})
}

// listStates handles GET /api/state/{userId}.
func (h *Handler) listStates(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	views, err := h.coord.ListStates(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	states := make([]stateView, 0, len(views))
	for i := range views {
		states = append(states, newStateView(&views[i]))
	}
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(states),
		"states":  states,
	})
}

// getState handles GET /api/state/{userId}/{sessionId}.
func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	sessionID := chi.URLParam(r, "sessionId")

	view, err := h.coord.GetState(r.Context(), userID, sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"state":   newStateView(view),
	})
}
