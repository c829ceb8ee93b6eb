package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-ai/concierge/internal/conversation"
	"github.com/portfolio-ai/concierge/internal/corpus"
	"github.com/portfolio-ai/concierge/internal/llm"
	"github.com/portfolio-ai/concierge/internal/middleware"
	"github.com/portfolio-ai/concierge/internal/model"
	"github.com/portfolio-ai/concierge/internal/ratelimit"
	"github.com/portfolio-ai/concierge/internal/retrieval"
	"github.com/portfolio-ai/concierge/internal/safety"
	"github.com/portfolio-ai/concierge/internal/service"
	"github.com/portfolio-ai/concierge/internal/storage/jsonfile"
	"github.com/portfolio-ai/concierge/internal/tracker"
	"github.com/portfolio-ai/concierge/pkg/logger"
)

const testSecret = "handler-test-secret"

type scriptedLLM struct {
	reply string
	err   error
}

func (s *scriptedLLM) Complete(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.reply}, nil
}

func (s *scriptedLLM) Name() string { return "scripted" }

var pitaPit = model.Passage{
	ID:      "chunk_pita",
	Title:   "Pita Pit role",
	Content: "Sam managed the Pita Pit store in Toronto, leading a team of twelve.",
	Tags:    []string{"work"},
}

// newServer wires the real services over a temp data dir. A nil client
// leaves the chat without a model.
func newServer(t *testing.T, client llm.Client, checks ...Check) http.Handler {
	t.Helper()
	dir := t.TempDir()
	corpusPath := filepath.Join(dir, "chunks.json")
	require.NoError(t, jsonfile.WriteJSONAtomic(corpusPath, []model.Passage{pitaPit}))

	log := logger.NewNop()
	store := corpus.NewStore(corpusPath, log)
	logRepo := jsonfile.NewQuestionLog(dir)
	tr := tracker.New(jsonfile.NewUnansweredRepository(dir), logRepo, tracker.Options{})
	questions := tracker.NewQuestionLog(logRepo, nil, log, nil)

	chat := service.NewChatService(service.ChatDeps{
		Client:        client,
		Corpus:        store,
		Retriever:     retrieval.NewRetriever(store, retrieval.Options{}),
		Reranker:      retrieval.NewReranker(client, log, retrieval.RerankOptions{}),
		Filter:        safety.NewFilter(safety.Options{Persona: safety.Persona{SubjectName: "Sam"}}),
		Tracker:       tr,
		Questions:     questions,
		Conversations: conversation.NewStore(conversation.Options{}),
		Limiter:       ratelimit.New(ratelimit.DefaultCooldown, nil),
		Logger:        log,
	}, service.ChatOptions{Persona: service.Persona{SubjectName: "Sam"}})
	admin := service.NewAdminService(store, tr, questions, log)

	return NewRouter(RouterConfig{
		Chat:                   NewChatHandler(chat, log),
		Admin:                  NewAdminHandler(admin, log),
		Health:                 NewHealthHandler(checks...),
		Logger:                 log,
		JWTSecret:              testSecret,
		AdminRateLimitRequests: 100,
		AdminRateLimitWindow:   time.Minute,
	})
}

func adminToken(t *testing.T) string {
	t.Helper()
	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: []string{middleware.AdminScope},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.10:5000"
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestChatEndpoint(t *testing.T) {
	srv := newServer(t, &scriptedLLM{reply: "He managed the Pita Pit store in Toronto."})

	rec := do(t, srv, http.MethodPost, "/api/chat", "", map[string]string{"message": "What did he do at Pita Pit?"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[model.ChatResponse](t, rec)
	assert.Contains(t, resp.Reply, "Pita Pit store")
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(t, srv, http.MethodPost, "/api/chat", "", map[string]string{
		"message":         "And before that?",
		"conversation_id": resp.ConversationID,
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "8", rec.Header().Get("Retry-After"))
	limited := decode[model.ChatResponse](t, rec)
	assert.Contains(t, limited.Reply, "Rate limited")
	assert.Equal(t, resp.ConversationID, limited.ConversationID)
}

func TestChatKeepsOpaqueConversationID(t *testing.T) {
	srv := newServer(t, &scriptedLLM{reply: "He managed the Pita Pit store in Toronto."})

	rec := do(t, srv, http.MethodPost, "/api/chat", "", map[string]string{
		"message":         "What did he do at Pita Pit?",
		"conversation_id": "conv_abc123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[model.ChatResponse](t, rec)
	assert.Equal(t, "conv_abc123", resp.ConversationID)
	assert.Contains(t, resp.Reply, "Pita Pit store")
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		client llm.Client
		body   any
		raw    string
		status int
		reply  string
	}{
		{
			name:   "malformed body",
			client: &scriptedLLM{reply: "ok"},
			raw:    "{not json",
			status: http.StatusBadRequest,
			reply:  model.ReplyInvalidInput,
		},
		{
			name:   "empty message",
			client: &scriptedLLM{reply: "ok"},
			body:   map[string]string{"message": "   "},
			status: http.StatusBadRequest,
			reply:  model.ReplyInvalidInput,
		},
		{
			name:   "bad conversation id",
			client: &scriptedLLM{reply: "ok"},
			body:   map[string]string{"message": "hello there friend", "conversation_id": "conv 1; drop"},
			status: http.StatusBadRequest,
			reply:  model.ReplyInvalidInput,
		},
		{
			name:   "no model configured",
			body:   map[string]string{"message": "What did he do at Pita Pit?"},
			status: http.StatusServiceUnavailable,
			reply:  model.ReplyModelUnavailable,
		},
		{
			name:   "generation failed",
			client: &scriptedLLM{err: errors.New("upstream 500")},
			body:   map[string]string{"message": "What did he do at Pita Pit?"},
			status: http.StatusBadGateway,
			reply:  model.ReplyGenerationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.client)

			var rec *httptest.ResponseRecorder
			if tt.raw != "" {
				req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(tt.raw))
				rec = httptest.NewRecorder()
				srv.ServeHTTP(rec, req)
			} else {
				rec = do(t, srv, http.MethodPost, "/api/chat", "", tt.body)
			}

			assert.Equal(t, tt.status, rec.Code)
			if tt.reply != "" {
				assert.Equal(t, tt.reply, decode[model.ChatResponse](t, rec).Reply)
			}
		})
	}
}

func TestAdminRequiresToken(t *testing.T) {
	srv := newServer(t, &scriptedLLM{reply: "ok"})

	rec := do(t, srv, http.MethodGet, "/api/admin/question-stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminDisabledWithoutSecret(t *testing.T) {
	log := logger.NewNop()
	srv := NewRouter(RouterConfig{
		Chat:   NewChatHandler(nil, log),
		Admin:  NewAdminHandler(nil, log),
		Health: NewHealthHandler(),
		Logger: log,
	})

	rec := do(t, srv, http.MethodGet, "/api/admin/unanswered-questions", adminToken(t), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin API is disabled")

	rec = do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminTriageFlow(t *testing.T) {
	srv := newServer(t, &scriptedLLM{reply: "I don't have that information about Rust right now."})
	token := adminToken(t)

	rec := do(t, srv, http.MethodPost, "/api/chat", "", map[string]string{"message": "Does he know Rust?"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/admin/unanswered-questions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Questions []model.UnansweredQuestion `json:"questions"`
		Total     int                        `json:"total"`
	}](t, rec)
	require.Equal(t, 1, list.Total)
	id := list.Questions[0].ID
	assert.Equal(t, "Does he know Rust?", list.Questions[0].Question)

	rec = do(t, srv, http.MethodPost, "/api/admin/unanswered-questions/"+id+"/answer", token, map[string]any{
		"answer":                "Sam has written small Rust services for log processing.",
		"add_to_knowledge_base": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[service.AnswerResult](t, rec)
	assert.Equal(t, model.StatusAnswered, result.Question.Status)
	assert.GreaterOrEqual(t, result.ChunksAdded, 1)

	rec = do(t, srv, http.MethodGet, "/api/admin/knowledge-base?search=rust", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	kb := decode[struct {
		Total int `json:"total"`
	}](t, rec)
	assert.Equal(t, result.ChunksAdded, kb.Total)

	rec = do(t, srv, http.MethodGet, "/api/admin/unanswered-questions", token, nil)
	assert.Equal(t, 0, decode[struct {
		Total int `json:"total"`
	}](t, rec).Total)

	rec = do(t, srv, http.MethodGet, "/api/admin/question-stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[model.QuestionStats](t, rec)
	assert.Equal(t, 1, stats.TotalQuestions)
	assert.Equal(t, 1, stats.Answered)

	rec = do(t, srv, http.MethodGet, "/api/admin/recent-questions?limit=5", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[struct {
		Total int `json:"total"`
	}](t, rec).Total)
}

func TestAdminErrors(t *testing.T) {
	srv := newServer(t, &scriptedLLM{reply: "ok"})
	token := adminToken(t)

	rec := do(t, srv, http.MethodPost, "/api/admin/unanswered-questions/missing/ignore", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/admin/unanswered-questions/missing/answer", token, map[string]any{"answer": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/admin/knowledge-base/answers", token, map[string]string{"question": "", "answer": "text"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminKnowledgeBase(t *testing.T) {
	srv := newServer(t, &scriptedLLM{reply: "ok"})
	token := adminToken(t)

	rec := do(t, srv, http.MethodPost, "/api/admin/knowledge-base/answers", token, map[string]string{
		"question": "Does he speak French?",
		"answer":   "Yes, Sam is fluent in French after two years in Paris.",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.GreaterOrEqual(t, decode[map[string]int](t, rec)["chunks_added"], 1)

	rec = do(t, srv, http.MethodGet, "/api/admin/knowledge-base/validate", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[corpus.ValidationReport](t, rec)
	assert.Empty(t, report.Errors)
}

func TestReady(t *testing.T) {
	srv := newServer(t, nil, Check{Name: "corpus", Fn: func(context.Context) error { return nil }})
	rec := do(t, srv, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	srv = newServer(t, nil, Check{Name: "nats", Fn: func(context.Context) error { return errors.New("not connected") }})
	rec = do(t, srv, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "nats", decode[map[string]string](t, rec)["check"])

	rec = do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
