package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/portfolio-ai/concierge/internal/config"
	"github.com/portfolio-ai/concierge/internal/corpus"
	natsclient "github.com/portfolio-ai/concierge/internal/nats"
	"github.com/portfolio-ai/concierge/internal/service"
	"github.com/portfolio-ai/concierge/internal/storage"
	"github.com/portfolio-ai/concierge/internal/tracker"
	"github.com/portfolio-ai/concierge/pkg/logger"
)

type app struct {
	cfg    *config.Config
	admin  *service.AdminService
	events *natsclient.StreamManager
	close  []func()
}

func (a *app) Close() {
	for i := len(a.close) - 1; i >= 0; i-- {
		a.close[i]()
	}
	a.close = nil
}

func wireApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.NewNop()
	if strings.EqualFold(cfg.LogLevel, "debug") {
		if log, err = logger.NewDevelopment(); err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
	}

	a := &app{cfg: cfg}

	repos, err := storage.Open(ctx, storage.Options{
		Driver:      cfg.StorageDriver,
		FeedbackDir: cfg.FeedbackDir,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("wire storage: %w", err)
	}
	a.close = append(a.close, repos.Close)

	var pub tracker.Publisher
	if cfg.NATSEnabled {
		client, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			Name:     "kbctl",
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("wire nats: %w", err)
		}
		a.close = append(a.close, client.Close)
		a.events = natsclient.NewStreamManager(client)
		pub = a.events
	}

	store := corpus.NewStore(cfg.CorpusFile, log)
	tr := tracker.New(repos.Unanswered, repos.Questions, tracker.Options{Publisher: pub, Logger: log})
	questions := tracker.NewQuestionLog(repos.Questions, pub, log, nil)
	a.admin = service.NewAdminService(store, tr, questions, log)
	return a, nil
}
