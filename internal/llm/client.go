// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/portfolio-ai/concierge/pkg/metrics"
)

// DefaultMaxTokens bounds replies when a request sets no limit.
const DefaultMaxTokens = 1024

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty completion response")

// Roles used in ChatMessage.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	// Temperature is sent as given, zero included; nil keeps the provider default.
	Temperature *float64
	// Operation labels the call in metrics, e.g. "chat" or "rerank".
	Operation string
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Temperature returns a pointer for CompletionRequest.Temperature.
func Temperature(v float64) *float64 {
	return &v
}

// limits returns the model and token cap for a call, falling back to the
// provider default model and DefaultMaxTokens.
func (r *CompletionRequest) limits(defaultModel string) (string, int) {
	model, maxTokens := r.Model, r.MaxTokens
	if model == "" {
		model = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return model, maxTokens
}

// alternating joins consecutive messages that share a role. Anthropic and
// Gemini reject two user or two assistant turns in a row.
func alternating(messages []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Keys holds the credentials for each provider.
type Keys struct {
	Gemini    string
	OpenAI    string
	Anthropic string
}

// Resolve picks the provider to use. An explicit provider wins; otherwise the
// first provider with a key, in the order Gemini, OpenAI, Anthropic.
// It returns an empty provider when no key is configured.
func (k Keys) Resolve(explicit Provider) (Provider, string) {
	switch explicit {
	case ProviderGemini:
		return explicit, k.Gemini
	case ProviderOpenAI:
		return explicit, k.OpenAI
	case ProviderAnthropic:
		return explicit, k.Anthropic
	}
	switch {
	case k.Gemini != "":
		return ProviderGemini, k.Gemini
	case k.OpenAI != "":
		return ProviderOpenAI, k.OpenAI
	case k.Anthropic != "":
		return ProviderAnthropic, k.Anthropic
	}
	return "", ""
}

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderGemini:
		return NewGeminiClient(apiKey)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}

// instrumented records call metrics around another client.
type instrumented struct {
	Client
}

// WithMetrics wraps a client so every call is recorded in Prometheus.
func WithMetrics(c Client) Client {
	return &instrumented{Client: c}
}

func (c *instrumented) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	op := req.Operation
	if op == "" {
		op = "complete"
	}

	resp, err := c.Client.Complete(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
	}

	var in, out int
	if resp != nil {
		in, out = resp.TokensIn, resp.TokensOut
	}
	metrics.RecordLLMCall(c.Name(), op, status, time.Since(start).Seconds(), in, out)
	return resp, err
}
