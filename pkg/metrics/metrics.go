// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMCallDuration tracks generation model call duration.
	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_call_duration_seconds",
			Help:    "Generation model call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "operation", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"provider", "direction"},
	)

	// ChatTurnsTotal counts chat messages by the route they took.
	ChatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Chat messages by outcome route",
		},
		[]string{"route"},
	)

	// RerankTotal counts reranker invocations by outcome.
	RerankTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rerank_total",
			Help: "Relevance reranker calls by outcome",
		},
		[]string{"outcome"},
	)

	// SafetyOutcomesTotal counts safety filter results.
	SafetyOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_safety_outcomes_total",
			Help: "Reply safety filter outcomes",
		},
		[]string{"outcome"},
	)

	// RateLimitedTotal counts rejected chat admissions.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_rate_limited_total",
			Help: "Chat requests rejected by the per-client cooldown",
		},
	)

	// UnansweredTotal counts replies classified as unanswered.
	UnansweredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_unanswered_total",
			Help: "Replies classified as unanswered",
		},
	)

	// CorpusReloadsTotal counts corpus file parses by status.
	CorpusReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpus_reloads_total",
			Help: "Corpus file reloads",
		},
		[]string{"status"},
	)

	// CorpusPassages reports the size of the cached corpus.
	CorpusPassages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "corpus_passages",
			Help: "Number of passages in the cached corpus",
		},
	)

	// ConversationsActive tracks conversations held in memory.
	ConversationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conversations_active",
			Help: "Conversations held in memory",
		},
	)

	// ConversationsEvictedTotal counts evicted conversations by reason.
	ConversationsEvictedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_evicted_total",
			Help: "Conversations evicted from memory",
		},
		[]string{"reason"},
	)

	// EventsPublishedTotal counts question events published to NATS.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_events_published_total",
			Help: "Question events published to JetStream",
		},
		[]string{"type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMCall records metrics for a generation model call.
func RecordLLMCall(provider, operation, status string, duration float64, tokensIn, tokensOut int) {
	LLMCallDuration.WithLabelValues(provider, operation, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
}

// RecordChatTurn counts a chat message by route.
func RecordChatTurn(route string) {
	ChatTurnsTotal.WithLabelValues(route).Inc()
}

// RecordRerank counts a reranker outcome.
func RecordRerank(outcome string) {
	RerankTotal.WithLabelValues(outcome).Inc()
}

// RecordSafetyOutcome counts a safety filter outcome.
func RecordSafetyOutcome(outcome string) {
	SafetyOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordCorpusReload records a corpus parse and the resulting size.
func RecordCorpusReload(status string, passages int) {
	CorpusReloadsTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		CorpusPassages.Set(float64(passages))
	}
}

// RecordEventPublished counts a published question event.
func RecordEventPublished(eventType, status string) {
	EventsPublishedTotal.WithLabelValues(eventType, status).Inc()
}
