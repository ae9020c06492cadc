package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// startSession handles POST /api/session/start.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	userID, sessionID := sessionFromContext(r.Context())

	res, err := h.coord.StartSession(r.Context(), userID, sessionID, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	JSON(w, status, map[string]any{
		"success":    true,
		"created":    res.Created,
		"greeting":   res.Greeting,
		"user_id":    userID,
		"session_id": sessionID,
	})
}

// getSession handles GET /api/session/{userId}/{sessionId}.
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	sessionID := chi.URLParam(r, "sessionId")

	session, err := h.coord.SessionInfo(r.Context(), userID, sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": newSessionView(session.Transcript),
	})
}

type agentRequest struct {
	Message string `json:"message"`
}

// agentTurn handles POST /api/agent: one dialogue turn.
func (h *Handler) agentTurn(w http.ResponseWriter, r *http.Request) {
	userID, sessionID := sessionFromContext(r.Context())

	var req agentRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.coord.HandleTurn(r.Context(), userID, sessionID, req.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"response":          res.Reply,
		"is_finished":       res.Finished,
		"intent":            res.Intent,
		"selected_policies": res.Policies,
	})
}
