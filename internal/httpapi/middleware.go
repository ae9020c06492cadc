package httpapi

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	sessionIDKey contextKey = "session_id"
)

const (
	minUserIDLen    = 3
	maxUserIDLen    = 50
	minSessionIDLen = 10
)

// requireSessionHeaders validates the X-User-ID / X-Session-ID headers
// the front-end sends with every session-scoped call and stores them on
// the request context.
func (h *Handler) requireSessionHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		sessionID := strings.TrimSpace(r.Header.Get("X-Session-ID"))

		if len(userID) < minUserIDLen || len(userID) > maxUserIDLen {
			Error(w, http.StatusBadRequest, "X-User-ID header must be 3-50 characters")
			return
		}
		if len(sessionID) < minSessionIDLen {
			Error(w, http.StatusBadRequest, "X-Session-ID header must be at least 10 characters")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) (userID, sessionID string) {
	userID, _ = ctx.Value(userIDKey).(string)
	sessionID, _ = ctx.Value(sessionIDKey).(string)
	return userID, sessionID
}
