package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiCompleteMapsRolesAndConfig(t *testing.T) {
	t.Parallel()

	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.RawQuery)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Hello "}, {"text": "there"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 3}
		}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient("secret", WithGeminiBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), &CompletionRequest{
		Messages: []ChatMessage{
			{Role: RoleUser, Content: "context"},
			{Role: RoleAssistant, Content: "ack"},
			{Role: RoleUser, Content: "question"},
		},
		Temperature: Temperature(0.7),
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", resp.Content)
	assert.Equal(t, 12, resp.TokensIn)
	assert.Equal(t, 3, resp.TokensOut)
	assert.Equal(t, "STOP", resp.StopReason)

	require.Len(t, got.Contents, 3)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "model", got.Contents[1].Role)
	assert.Equal(t, "question", got.Contents[2].Parts[0].Text)
	require.NotNil(t, got.GenerationConfig)
	assert.Equal(t, DefaultMaxTokens, got.GenerationConfig.MaxOutputTokens)
	require.NotNil(t, got.GenerationConfig.Temperature)
	assert.InDelta(t, 0.7, *got.GenerationConfig.Temperature, 1e-9)
}

func TestGeminiCompleteReportsAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "API key not valid", "status": "PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient("bad", WithGeminiBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &CompletionRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "API key not valid")
}

func TestGeminiCompleteEmptyCandidates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient("k", WithGeminiBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &CompletionRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}})
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGeminiCompleteHonoursContextDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewGeminiClient("k", WithGeminiBaseURL(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Complete(ctx, &CompletionRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGeminiSendsExplicitZeroTemperature(t *testing.T) {
	t.Parallel()

	var body struct {
		GenerationConfig map[string]any `json:"generationConfig"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "1,2"}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient("k", WithGeminiBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &CompletionRequest{
		Messages:    []ChatMessage{{Role: RoleUser, Content: "rank"}},
		Temperature: Temperature(0),
	})
	require.NoError(t, err)
	require.Contains(t, body.GenerationConfig, "temperature")
	assert.Equal(t, float64(0), body.GenerationConfig["temperature"])
}

func TestGeminiTransportErrorDoesNotLeakKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := NewGeminiClient("SECRET-KEY-123", WithGeminiBaseURL(base))
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &CompletionRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
}
