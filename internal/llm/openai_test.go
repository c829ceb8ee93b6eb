package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIComplete(t *testing.T) {
	var got struct {
		Model     string        `json:"model"`
		MaxTokens int           `json:"max_tokens"`
		Messages  []ChatMessage `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini-2024-07-18",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Sam speaks French."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("sk-test", WithOpenAIBaseURL(srv.URL+"/v1/"))
	require.NoError(t, err)

	resp, err := c.Complete(t.Context(), &CompletionRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "Does he speak French?"}},
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultOpenAIModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Sam speaks French.", resp.Content)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", resp.Model)
	assert.Equal(t, 12, resp.TokensIn)
	assert.Equal(t, 4, resp.TokensOut)
	assert.Equal(t, "stop", resp.StopReason)
}

func TestOpenAICompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
		empty   bool
	}{
		{
			name:    "api error",
			status:  http.StatusTooManyRequests,
			body:    `{"error": {"message": "slow down", "type": "rate_limit_error"}}`,
			wantErr: "status 429",
		},
		{
			name:   "blank reply",
			status: http.StatusOK,
			body:   `{"id": "x", "model": "m", "choices": [{"index": 0, "message": {"role": "assistant", "content": "  "}}]}`,
			empty:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewOpenAIClient("sk-test", WithOpenAIBaseURL(srv.URL))
			require.NoError(t, err)

			_, err = c.Complete(t.Context(), &CompletionRequest{
				Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
			})
			require.Error(t, err)
			if tt.empty {
				assert.ErrorIs(t, err, ErrEmptyResponse)
			} else {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestOpenAITemperature(t *testing.T) {
	assert.Zero(t, openAITemperature(nil))
	assert.Greater(t, openAITemperature(Temperature(0)), float32(0))
	assert.Less(t, openAITemperature(Temperature(0)), float32(1e-6))
	assert.InDelta(t, 0.7, openAITemperature(Temperature(0.7)), 1e-6)
}

func TestRequestLimits(t *testing.T) {
	model, maxTokens := (&CompletionRequest{}).limits("fallback")
	assert.Equal(t, "fallback", model)
	assert.Equal(t, DefaultMaxTokens, maxTokens)

	model, maxTokens = (&CompletionRequest{Model: "m", MaxTokens: 50}).limits("fallback")
	assert.Equal(t, "m", model)
	assert.Equal(t, 50, maxTokens)
}

func TestAlternatingJoinsSameRoleTurns(t *testing.T) {
	got := alternating([]ChatMessage{
		{Role: RoleUser, Content: "a"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleAssistant, Content: "c"},
		{Role: RoleUser, Content: "d"},
	})
	assert.Equal(t, []ChatMessage{
		{Role: RoleUser, Content: "a\n\nb"},
		{Role: RoleAssistant, Content: "c"},
		{Role: RoleUser, Content: "d"},
	}, got)
}

func TestAnthropicRejectsAssistantFirst(t *testing.T) {
	c, err := NewAnthropicClient("key")
	require.NoError(t, err)

	_, err = c.Complete(t.Context(), &CompletionRequest{
		Messages: []ChatMessage{{Role: RoleAssistant, Content: "hello"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with a user message")
}
