// Package main is the entry point for the concierge API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/portfolio-ai/concierge/internal/config"
	"github.com/portfolio-ai/concierge/internal/conversation"
	"github.com/portfolio-ai/concierge/internal/corpus"
	"github.com/portfolio-ai/concierge/internal/handler"
	"github.com/portfolio-ai/concierge/internal/llm"
	natsclient "github.com/portfolio-ai/concierge/internal/nats"
	"github.com/portfolio-ai/concierge/internal/ratelimit"
	"github.com/portfolio-ai/concierge/internal/retrieval"
	"github.com/portfolio-ai/concierge/internal/rules"
	"github.com/portfolio-ai/concierge/internal/safety"
	"github.com/portfolio-ai/concierge/internal/service"
	"github.com/portfolio-ai/concierge/internal/storage"
	"github.com/portfolio-ai/concierge/internal/tracker"
	"github.com/portfolio-ai/concierge/pkg/logger"
	"github.com/portfolio-ai/concierge/pkg/tracing"
)

const sweepInterval = time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "concierge-api",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting concierge API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "portfolio-concierge", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	ruleSet, err := rules.Load(cfg.RulesFile)
	if err != nil {
		log.Fatal("failed to load rules file", zap.String("path", cfg.RulesFile), zap.Error(err))
	}

	profile, err := service.LoadProfile(cfg.ProfileFile)
	if err != nil {
		log.Warn("failed to load profile, continuing without it", zap.String("path", cfg.ProfileFile), zap.Error(err))
		profile = map[string]any{}
	}

	// Corpus
	store := corpus.NewStore(cfg.CorpusFile, log.Named("corpus"))
	if cfg.CorpusWatch {
		if err := store.Watch(ctx); err != nil {
			log.Warn("corpus watcher disabled, falling back to stat checks", zap.Error(err))
		}
	}
	checks := []handler.Check{{Name: "corpus", Fn: func(context.Context) error {
		_, err := os.Stat(store.Path())
		return err
	}}}

	// Storage
	repos, err := storage.Open(ctx, storage.Options{
		Driver:      cfg.StorageDriver,
		FeedbackDir: cfg.FeedbackDir,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatal("failed to open storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer repos.Close()
	if repos.Ping != nil {
		checks = append(checks, handler.Check{Name: "database", Fn: repos.Ping})
	}

	// Question events
	var publisher tracker.Publisher
	if cfg.NATSEnabled {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			Name:     "concierge-api",
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		publisher = streamManager
		checks = append(checks, handler.Check{Name: "nats", Fn: natsClient.Ping})
	}

	// Initialize LLM client
	var llmClient llm.Client
	provider, apiKey := llm.Keys{
		Gemini:    cfg.GeminiAPIKey,
		OpenAI:    cfg.OpenAIAPIKey,
		Anthropic: cfg.AnthropicAPIKey,
	}.Resolve(llm.Provider(cfg.LLMProvider))
	if apiKey == "" {
		log.Warn("no generation model key configured, chat will report the model as unavailable")
	} else if client, err := llm.NewClient(provider, apiKey); err != nil {
		log.Warn("failed to create LLM client, chat disabled", zap.String("provider", string(provider)), zap.Error(err))
	} else {
		llmClient = llm.WithMetrics(client)
		log.Info("generation model configured", zap.String("provider", string(provider)))
	}

	// Initialize services
	tr := tracker.New(repos.Unanswered, repos.Questions, tracker.Options{
		Classifier: tracker.NewClassifier(ruleSet.Unanswered),
		Publisher:  publisher,
		Logger:     log,
	})
	questions := tracker.NewQuestionLog(repos.Questions, publisher, log, nil)

	conversations := conversation.NewStore(conversation.Options{
		MaxTurns:         cfg.ChatHistoryMessages,
		MaxConversations: cfg.MaxConversations,
		IdleTTL:          cfg.ConversationTTL,
	})
	limiter := ratelimit.New(cfg.ChatCooldown, nil)

	chatSvc := service.NewChatService(service.ChatDeps{
		Client:    llmClient,
		Corpus:    store,
		Retriever: retrieval.NewRetriever(store, retrieval.Options{Stopwords: ruleSet.Stopwords}),
		Reranker: retrieval.NewReranker(llmClient, log, retrieval.RerankOptions{
			Timeout: cfg.RerankTimeout,
			Model:   cfg.LLMModel,
		}),
		Filter: safety.NewFilter(safety.Options{
			Disallowed: ruleSet.Disallowed,
			Persona: safety.Persona{
				SubjectName:   cfg.SubjectName,
				WorkPage:      cfg.WorkPage,
				EducationPage: cfg.EducationPage,
			},
		}),
		Tracker:       tr,
		Questions:     questions,
		Conversations: conversations,
		Limiter:       limiter,
		Logger:        log,
	}, service.ChatOptions{
		Persona: service.Persona{
			AssistantName: cfg.AssistantName,
			SubjectName:   cfg.SubjectName,
			ContactEmail:  cfg.ContactEmail,
			WorkPage:      cfg.WorkPage,
			EducationPage: cfg.EducationPage,
		},
		Profile:     profile,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMTimeout,
		TurnTimeout: cfg.ChatTurnTimeout,
		SmallTalk:   ruleSet.SmallTalk,
	})
	adminSvc := service.NewAdminService(store, tr, questions, log)

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, admin API disabled")
	}

	go sweep(ctx, log, limiter, conversations)

	router := handler.NewRouter(handler.RouterConfig{
		Chat:                   handler.NewChatHandler(chatSvc, log),
		Admin:                  handler.NewAdminHandler(adminSvc, log),
		Health:                 handler.NewHealthHandler(checks...),
		Logger:                 log,
		JWTSecret:              cfg.JWTSecret,
		AdminRateLimitRequests: cfg.AdminRateLimitRequests,
		AdminRateLimitWindow:   cfg.AdminRateLimitWindow,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// sweep drops idle limiter keys and expired conversations until ctx ends.
func sweep(ctx context.Context, log *logger.Logger, limiter *ratelimit.Limiter, conversations *conversation.Store) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			keys := limiter.Sweep()
			convs := conversations.Sweep()
			if keys > 0 || convs > 0 {
				log.Debug("swept idle state", zap.Int("limiter_keys", keys), zap.Int("conversations", convs))
			}
		}
	}
}
