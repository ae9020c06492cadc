package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dajeong-health/intake-server/internal/conversation"
	"github.com/dajeong-health/intake-server/internal/database"
	"github.com/dajeong-health/intake-server/internal/engine"
	"github.com/dajeong-health/intake-server/internal/httpapi"
	"github.com/dajeong-health/intake-server/internal/intake"
)

const testGreeting = "안녕하세요? 문진을 시작할게요."

type fixture struct {
	router http.Handler
	store  database.Store
}

// newFixture wires a real SQLite store, a scripted engine, and the full
// router together.
func newFixture(t *testing.T, chatResp *engine.ChatResponse) *fixture {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, nil)

	engineSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/chat" {
			json.NewEncoder(w).Encode(chatResp)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]string{
				"depression": "우울 수준 보통",
				"anxiety":    "불안 수준 낮음",
				"suggestion": "충분한 휴식을 권장합니다.",
			},
		})
	}))
	t.Cleanup(engineSrv.Close)

	coord := conversation.New(store, engine.NewClient(engineSrv.URL, 0, 0, nil), nil, conversation.Options{
		Greeting:       testGreeting,
		ClosingMessage: "죄송합니다. 이 대화는 이미 종료되었습니다.",
	})
	return &fixture{
		router: httpapi.NewHandler(coord, store, nil).Router(),
		store:  store,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	// Only JSON bodies are decoded; the heartbeat replies in plain text.
	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func sessionHeaders(userID, sessionID string) map[string]string {
	return map[string]string{"X-User-ID": userID, "X-Session-ID": sessionID}
}

func TestStartSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &engine.ChatResponse{Response: "ok"})
	headers := sessionHeaders("user-1", "session-aaaa")

	rec, body := f.do(t, http.MethodPost, "/api/session/start", nil, headers)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["created"])
	assert.Equal(t, testGreeting, body["greeting"])

	rec, body = f.do(t, http.MethodPost, "/api/session/start", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["created"])
}

func TestSessionHeaderValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &engine.ChatResponse{Response: "ok"})

	tests := []struct {
		name      string
		userID    string
		sessionID string
	}{
		{"missing user", "", "session-aaaa"},
		{"short user", "ab", "session-aaaa"},
		{"missing session", "user-1", ""},
		{"short session", "user-1", "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := f.do(t, http.MethodPost, "/api/session/start", nil,
				sessionHeaders(tt.userID, tt.sessionID))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAgentTurn(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &engine.ChatResponse{
		Response:    "다음 질문이에요.",
		Intent:      "ask_question",
		FirstPolicy: "empathize",
	})
	headers := sessionHeaders("user-1", "session-aaaa")

	f.do(t, http.MethodPost, "/api/session/start", nil, headers)
	rec, body := f.do(t, http.MethodPost, "/api/agent",
		map[string]string{"message": "안녕하세요"}, headers)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "다음 질문이에요.", body["response"])
	assert.Equal(t, false, body["is_finished"])
	assert.Equal(t, "ask_question", body["intent"])
}

func TestAgentTurnEmptyMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &engine.ChatResponse{Response: "ok"})
	rec, _ := f.do(t, http.MethodPost, "/api/agent",
		map[string]string{"message": "  "}, sessionHeaders("user-1", "session-aaaa"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgentTurnEngineDown(t *testing.T) {
	t.Parallel()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, nil)

	coord := conversation.New(store, engine.NewClient("http://127.0.0.1:1", 0, 0, nil), nil,
		conversation.Options{Greeting: testGreeting, ClosingMessage: "종료"})
	f := &fixture{router: httpapi.NewHandler(coord, store, nil).Router(), store: store}

	rec, _ := f.do(t, http.MethodPost, "/api/agent",
		map[string]string{"message": "안녕"}, sessionHeaders("user-1", "session-aaaa"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &engine.ChatResponse{Response: "네, 반가워요"})
	headers := sessionHeaders("user-1", "session-aaaa")
	f.do(t, http.MethodPost, "/api/session/start", nil, headers)
	f.do(t, http.MethodPost, "/api/agent", map[string]string{"message": "안녕하세요"}, headers)

	rec, body := f.do(t, http.MethodGet, "/api/history/user-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, body = f.do(t, http.MethodGet, "/api/history/user-1/session-aaaa", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	messages := body["messages"].([]any)
	assert.Len(t, messages, 3) // greeting + user + bot

	rec, _ = f.do(t, http.MethodGet, "/api/history/user-1/session-unknown9", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStateEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &engine.ChatResponse{Response: "ok"})
	headers := sessionHeaders("user-1", "session-aaaa")
	f.do(t, http.MethodPost, "/api/session/start", nil, headers)

	rec, body := f.do(t, http.MethodGet, "/api/state/user-1/session-aaaa", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := body["state"].(map[string]any)
	assert.Equal(t, false, state["is_completed"])
	assert.EqualValues(t, 0, state["answered_count"])
	assert.Len(t, state["questions"].([]any), intake.QuestionCount)

	rec, body = f.do(t, http.MethodGet, "/api/state/user-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
}

func TestDeleteEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &engine.ChatResponse{Response: "ok"})
	for _, sid := range []string{"session-aaaa", "session-bbbb", "session-cccc"} {
		headers := sessionHeaders("user-1", sid)
		f.do(t, http.MethodPost, "/api/session/start", nil, headers)
		f.do(t, http.MethodPost, "/api/agent", map[string]string{"message": "안녕하세요"}, headers)
	}

	rec, body := f.do(t, http.MethodDelete, "/api/delete/conversation/batch/user-1",
		map[string]any{"sessionIds": []string{"session-aaaa", "session-bbbb"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deleted := body["deleted"].(map[string]any)
	assert.EqualValues(t, 2, deleted["transcripts"])
	assert.EqualValues(t, 2, deleted["exchanges"])

	// The untouched session survives.
	rec, _ = f.do(t, http.MethodGet, "/api/history/user-1/session-cccc", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = f.do(t, http.MethodDelete, "/api/delete/status/user-1/session-cccc", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deleted = body["deleted"].(map[string]any)
	assert.EqualValues(t, 1, deleted["states"])

	rec, _ = f.do(t, http.MethodDelete, "/api/delete/conversation/batch/user-1",
		map[string]any{"sessionIds": []string{}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &engine.ChatResponse{Response: "ok"})
	headers := sessionHeaders("user-1", "session-aaaa")
	f.do(t, http.MethodPost, "/api/session/start", nil, headers)

	rec, body := f.do(t, http.MethodGet, "/api/summary/status/user-1/session-aaaa", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["has_summary"])

	rec, body = f.do(t, http.MethodGet, "/api/summary/user-1/session-aaaa", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["from_cache"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "우울 수준 보통", data["depression"])

	rec, body = f.do(t, http.MethodGet, "/api/summary/user-1/session-aaaa", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["from_cache"])

	rec, body = f.do(t, http.MethodPost, "/api/summary/regenerate/user-1/session-aaaa", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["from_cache"])

	rec, _ = f.do(t, http.MethodDelete, "/api/summary/cache/user-1/session-aaaa", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, body = f.do(t, http.MethodGet, "/api/summary/status/user-1/session-aaaa", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["has_summary"])
}

func TestFeedbackLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &engine.ChatResponse{Response: "ok"})

	rec, body := f.do(t, http.MethodPost, "/api/error-report", map[string]string{
		"user_id":    "user-1",
		"session_id": "session-aaaa",
		"message":    "챗봇이 같은 질문을 반복했어요",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	report := body["report"].(map[string]any)
	reportID := report["id"].(string)
	assert.Equal(t, database.FeedbackPending, report["status"])

	rec, body = f.do(t, http.MethodGet, "/api/error-report?status=pending", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["reports"].([]any), 1)

	rec, body = f.do(t, http.MethodPatch, "/api/error-report/"+reportID,
		map[string]string{"status": database.FeedbackResolved}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, database.FeedbackResolved, body["report"].(map[string]any)["status"])

	rec, _ = f.do(t, http.MethodPatch, "/api/error-report/"+reportID,
		map[string]string{"status": "bogus"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, "/api/error-report/"+reportID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodPatch, "/api/error-report/"+reportID,
		map[string]string{"status": database.FeedbackPending}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &engine.ChatResponse{Response: "ok"})
	rec, decoded := f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ".", rec.Body.String())
	assert.Nil(t, decoded)
}
