// Package service provides the chat orchestrator and admin operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/portfolio-ai/concierge/internal/conversation"
	"github.com/portfolio-ai/concierge/internal/corpus"
	"github.com/portfolio-ai/concierge/internal/llm"
	"github.com/portfolio-ai/concierge/internal/model"
	"github.com/portfolio-ai/concierge/internal/ratelimit"
	"github.com/portfolio-ai/concierge/internal/retrieval"
	"github.com/portfolio-ai/concierge/internal/rules"
	"github.com/portfolio-ai/concierge/internal/safety"
	"github.com/portfolio-ai/concierge/internal/tracker"
	"github.com/portfolio-ai/concierge/pkg/logger"
	"github.com/portfolio-ai/concierge/pkg/metrics"
	"github.com/portfolio-ai/concierge/pkg/tracing"
)

// Orchestrator defaults.
const (
	DefaultCandidates       = 12
	DefaultGenericGrounding = 6
	DefaultTimeout          = 30 * time.Second
	DefaultTurnTimeout      = 45 * time.Second
	DefaultTemperature      = 0.7
)

// Chat routes recorded in metrics.
const (
	routeSmallTalk = "small_talk"
	routeGrounded  = "grounded"
	routeGeneric   = "generic"
)

var tracer = tracing.Tracer("github.com/portfolio-ai/concierge/internal/service")

// ChatDeps are the components the orchestrator drives. Client may be nil,
// in which case every chat reports ErrModelUnavailable.
type ChatDeps struct {
	Client        llm.Client
	Corpus        *corpus.Store
	Retriever     *retrieval.Retriever
	Reranker      *retrieval.Reranker
	Filter        *safety.Filter
	Tracker       *tracker.Tracker
	Questions     *tracker.QuestionLog
	Conversations *conversation.Store
	Limiter       *ratelimit.Limiter
	Logger        *logger.Logger
}

// ChatOptions tunes generation and routing.
type ChatOptions struct {
	Persona     Persona
	Profile     map[string]any
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	// TurnTimeout bounds one whole turn: waiting for the conversation,
	// rerank, generation and the safety retry. It must stay below the
	// server write timeout so the failure reply still reaches the client.
	TurnTimeout time.Duration
	// Candidates is how many lexical matches are handed to the reranker.
	Candidates int
	// GenericGrounding is how many corpus passages ground a query that
	// matched nothing.
	GenericGrounding  int
	SmallTalk         []rules.Reply
	SmallTalkMaxWords int
	Expansions        []Expansion
}

// ChatService answers chat messages.
type ChatService struct {
	ChatDeps
	opts ChatOptions
}

// NewChatService creates the orchestrator.
func NewChatService(deps ChatDeps, opts ChatOptions) *ChatService {
	opts.Persona = opts.Persona.withDefaults()
	if opts.Profile == nil {
		opts.Profile = map[string]any{}
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = llm.DefaultMaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = DefaultTurnTimeout
	}
	if opts.Candidates <= 0 {
		opts.Candidates = DefaultCandidates
	}
	if opts.GenericGrounding <= 0 {
		opts.GenericGrounding = DefaultGenericGrounding
	}
	if opts.SmallTalk == nil {
		opts.SmallTalk = DefaultSmallTalk(opts.Persona)
	}
	if opts.SmallTalkMaxWords <= 0 {
		opts.SmallTalkMaxWords = DefaultSmallTalkMaxWords
	}
	if opts.Expansions == nil {
		opts.Expansions = DefaultExpansions
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	deps.Logger = deps.Logger.Named("chat")
	return &ChatService{ChatDeps: deps, opts: opts}
}

// Configured reports whether a generation model is available.
func (s *ChatService) Configured() bool {
	return s.Client != nil
}

// turn is the outcome of one message inside the conversation lock.
type turn struct {
	query      string
	reply      string
	smallTalk  bool
	chunksUsed int
}

// Chat answers one message. The returned response always carries a reply,
// also when err is non-nil, so callers can show it as is.
func (s *ChatService) Chat(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return s.failed(req.ConversationID, fmt.Errorf("empty message: %w", model.ErrInvalidInput))
	}
	if s.Client == nil {
		return s.failed(req.ConversationID, model.ErrModelUnavailable)
	}
	if ok, wait := s.Limiter.Admit(req.ClientKey); !ok {
		metrics.RateLimitedTotal.Inc()
		return s.failed(req.ConversationID, &model.RateLimitedError{RetryAfter: wait})
	}

	convID := req.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	log := s.Logger.WithConversation(req.CorrelationID, convID)

	ctx, span := tracer.Start(ctx, "chat")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", convID))

	turnCtx, cancel := context.WithTimeout(ctx, s.opts.TurnTimeout)
	defer cancel()

	var result turn
	err := s.Conversations.Do(turnCtx, convID, func(history []model.Turn) ([]model.Turn, error) {
		t, err := s.respond(turnCtx, log, message, history)
		if err != nil {
			return nil, err
		}
		result = t
		return []model.Turn{
			{Role: model.RoleUser, Content: t.query},
			{Role: model.RoleAssistant, Content: t.reply},
		}, nil
	})
	if err != nil {
		if !errors.Is(err, model.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %w", model.ErrGenerationFailed, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat failed")
		return s.failed(convID, err)
	}

	s.record(context.WithoutCancel(ctx), log, req, convID, result)
	return model.ChatResponse{Reply: result.reply, ConversationID: convID}, nil
}

func (s *ChatService) failed(convID string, err error) (model.ChatResponse, error) {
	return model.ChatResponse{Reply: model.UserReply(err), ConversationID: convID}, err
}

// respond produces the reply for one message. It runs under the
// conversation lock and must not touch shared bookkeeping.
func (s *ChatService) respond(ctx context.Context, log *logger.Logger, message string, history []model.Turn) (turn, error) {
	query := ExpandShortReply(message, history, s.opts.Expansions)
	if query != message {
		log.Debug("expanded short reply", zap.String("message", message), zap.String("query", query))
	}

	if r, ok := matchSmallTalk(s.opts.SmallTalk, s.opts.SmallTalkMaxWords, query); ok {
		metrics.RecordChatTurn(routeSmallTalk)
		log.Debug("small talk", zap.String("rule", r.Name))
		return turn{query: query, reply: r.Text, smallTalk: true}, nil
	}

	passages := s.ground(ctx, query)

	messages := make([]llm.ChatMessage, 0, len(history)+3)
	messages = append(messages,
		llm.ChatMessage{Role: llm.RoleUser, Content: BuildSystemPrompt(s.opts.Persona, passages, s.opts.Profile)},
		llm.ChatMessage{Role: llm.RoleAssistant, Content: s.opts.Persona.Acknowledgement()},
	)
	for _, h := range history {
		messages = append(messages, llm.ChatMessage{Role: string(h.Role), Content: h.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: query})

	raw, err := s.generate(ctx, messages, "chat")
	if err != nil {
		log.Error("generation failed",
			zap.String("query", query),
			zap.String("provider", s.Client.Name()),
			zap.Error(err),
		)
		return turn{}, fmt.Errorf("%w: %w", model.ErrGenerationFailed, err)
	}

	retry := func(ctx context.Context, rejected string) (string, error) {
		again := make([]llm.ChatMessage, 0, len(messages)+2)
		again = append(again, messages...)
		again = append(again,
			llm.ChatMessage{Role: llm.RoleAssistant, Content: rejected},
			llm.ChatMessage{Role: llm.RoleUser, Content: safety.RetryInstruction},
		)
		return s.generate(ctx, again, "safety_retry")
	}

	_, span := tracer.Start(ctx, "safety")
	res := s.Filter.Apply(ctx, query, raw, retry)
	span.SetAttributes(attribute.String("safety.outcome", string(res.Outcome)))
	span.End()
	if res.Outcome != safety.OutcomePassed {
		log.Warn("reply rejected by safety filter",
			zap.String("query", query),
			zap.String("outcome", string(res.Outcome)),
			zap.Strings("rules", res.Rejected),
			zap.Error(res.RetryErr),
		)
	}

	return turn{
		query:      query,
		reply:      s.Filter.AppendPageLinks(res.Reply, query),
		chunksUsed: len(passages),
	}, nil
}

// ground selects the passages for query. A query nothing matches is
// grounded on the head of the corpus instead.
func (s *ChatService) ground(ctx context.Context, query string) []model.Passage {
	ctx, span := tracer.Start(ctx, "retrieve")
	candidates := s.Retriever.Retrieve(ctx, query, s.opts.Candidates)
	span.SetAttributes(attribute.Int("retrieval.candidates", len(candidates)))
	span.End()

	if len(candidates) == 0 {
		metrics.RecordChatTurn(routeGeneric)
		all := s.Corpus.Load(ctx)
		if len(all) > s.opts.GenericGrounding {
			all = all[:s.opts.GenericGrounding]
		}
		return all
	}

	metrics.RecordChatTurn(routeGrounded)
	ctx, span = tracer.Start(ctx, "rerank")
	defer span.End()
	selected := s.Reranker.Rerank(ctx, query, candidates)
	span.SetAttributes(attribute.Int("rerank.selected", len(selected)))
	return selected
}

func (s *ChatService) generate(ctx context.Context, messages []llm.ChatMessage, operation string) (string, error) {
	ctx, span := tracer.Start(ctx, "generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.operation", operation))

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	resp, err := s.Client.Complete(callCtx, &llm.CompletionRequest{
		Model:       s.opts.Model,
		Messages:    messages,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: llm.Temperature(s.opts.Temperature),
		Operation:   operation,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", err
	}
	return resp.Content, nil
}

// record writes the question log entry and, for unanswered replies, the
// triage entry. Failures are logged and never reach the caller.
func (s *ChatService) record(ctx context.Context, log *logger.Logger, req model.ChatRequest, convID string, t turn) {
	unanswered := false
	if !t.smallTalk && s.Tracker != nil {
		unanswered = s.Tracker.Classify(t.reply, t.query)
	}

	if s.Questions != nil {
		_, err := s.Questions.Log(ctx, model.QuestionLogEntry{
			Question:       t.query,
			Reply:          t.reply,
			IsUnanswered:   unanswered,
			SmallTalk:      t.smallTalk,
			ConversationID: convID,
			IP:             req.ClientKey,
			ChunksUsed:     t.chunksUsed,
		})
		if err != nil {
			log.Warn("failed to log question", zap.Error(err))
		}
	}

	if !unanswered {
		return
	}
	q, err := s.Tracker.Record(ctx, t.query, t.reply, map[string]any{
		"conversation_id": convID,
		"ip":              req.ClientKey,
		"chunks_used":     t.chunksUsed,
	})
	if err != nil {
		log.Warn("failed to record unanswered question", zap.String("query", t.query), zap.Error(err))
		return
	}
	log.Info("unanswered question recorded",
		zap.String("question_id", q.ID),
		zap.Int("ask_count", q.AskCount),
	)
}
