// Package httpapi provides the HTTP surface of the intake server.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dajeong-health/intake-server/internal/conversation"
	"github.com/dajeong-health/intake-server/internal/database"
	"github.com/dajeong-health/intake-server/internal/engine"
	"github.com/dajeong-health/intake-server/internal/logger"
)

// Handler holds the dependencies shared by all routes.
type Handler struct {
	coord  *conversation.Coordinator
	store  database.Store
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(coord *conversation.Coordinator, store database.Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{coord: coord, store: store, logger: log.With("component", "httpapi")}
}

// Router builds the full route tree.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(logger.Middleware(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Heartbeat("/health"))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.requireSessionHeaders)
			r.Post("/session/start", h.startSession)
			r.Post("/agent", h.agentTurn)
		})
		r.Get("/session/{userId}/{sessionId}", h.getSession)

		r.Get("/history/{userId}", h.listHistory)
		r.Get("/history/{userId}/{sessionId}", h.getHistory)

		r.Get("/state/{userId}", h.listStates)
		r.Get("/state/{userId}/{sessionId}", h.getState)

		r.Delete("/delete/conversation/{userId}/{sessionId}", h.deleteConversation)
		r.Delete("/delete/conversation/batch/{userId}", h.deleteConversationBatch)
		r.Delete("/delete/status/{userId}/{sessionId}", h.deleteState)
		r.Delete("/delete/status/batch/{userId}", h.deleteStateBatch)

		r.Get("/summary/{userId}/{sessionId}", h.getSummary)
		r.Post("/summary/regenerate/{userId}/{sessionId}", h.regenerateSummary)
		r.Delete("/summary/cache/{userId}/{sessionId}", h.invalidateSummary)
		r.Get("/summary/status/{userId}/{sessionId}", h.summaryStatus)

		r.Post("/error-report", h.createFeedback)
		r.Get("/error-report", h.listFeedback)
		r.Patch("/error-report/{reportId}", h.updateFeedback)
		r.Delete("/error-report/{reportId}", h.deleteFeedback)
	})

	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"success": false, "error": message})
}

// writeError maps domain errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, "message must not be empty")
	case errors.Is(err, database.ErrNotFound):
		Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, engine.ErrTimeout):
		Error(w, http.StatusGatewayTimeout, "AI service timed out")
	case errors.Is(err, engine.ErrUnavailable):
		Error(w, http.StatusServiceUnavailable, "AI service unavailable")
	default:
		h.logger.Error("internal error", "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
