package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type batchDeleteRequest struct {
	SessionIDs []string `json:"sessionIds"`
}

// deleteConversation handles
// DELETE /api/delete/conversation/{userId}/{sessionId}.
func (h *Handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	sessionID := chi.URLParam(r, "sessionId")

	h.deleteConversations(w, r, userID, []string{sessionID})
}

// deleteConversationBatch handles
// DELETE /api/delete/conversation/batch/{userId} with a sessionIds body.
func (h *Handler) deleteConversationBatch(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req batchDeleteRequest
	if err := decodeBody(r, &req); err != nil || len(req.SessionIDs) == 0 {
		Error(w, http.StatusBadRequest, "sessionIds must be a non-empty array")
		return
	}
	h.deleteConversations(w, r, userID, req.SessionIDs)
}

func (h *Handler) deleteConversations(w http.ResponseWriter, r *http.Request, userID string, sessionIDs []string) {
	transcripts, exchanges, err := h.store.DeleteConversations(r.Context(), userID, sessionIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("conversations deleted",
		"user_id", userID,
		"sessions", len(sessionIDs),
		"transcripts", transcripts,
		"exchanges", exchanges)
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"deleted": map[string]int64{
			"transcripts": transcripts,
			"exchanges":   exchanges,
		},
	})
}

// deleteState handles DELETE /api/delete/status/{userId}/{sessionId}.
func (h *Handler) deleteState(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	sessionID := chi.URLParam(r, "sessionId")

	h.deleteStates(w, r, userID, []string{sessionID})
}

// deleteStateBatch handles DELETE /api/delete/status/batch/{userId}.
func (h *Handler) deleteStateBatch(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req batchDeleteRequest
	if err := decodeBody(r, &req); err != nil || len(req.SessionIDs) == 0 {
		Error(w, http.StatusBadRequest, "sessionIds must be a non-empty array")
		return
	}
	h.deleteStates(w, r, userID, req.SessionIDs)
}

func (h *Handler) deleteStates(w http.ResponseWriter, r *http.Request, userID string, sessionIDs []string) {
	deleted, err := h.store.DeleteIntakeStates(r.Context(), userID, sessionIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("intake states deleted",
		"user_id", userID,
		"sessions", len(sessionIDs),
		"states", deleted)
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"deleted": map[string]int64{"states": deleted},
	})
}
