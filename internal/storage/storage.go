// Package storage selects the question-log and triage repositories.
package storage

import (
	"context"
	"fmt"

	"github.com/portfolio-ai/concierge/internal/storage/jsonfile"
	"github.com/portfolio-ai/concierge/internal/storage/postgres"
	"github.com/portfolio-ai/concierge/internal/tracker"
)

// Options picks and configures a driver.
type Options struct {
	// Driver is "file" or "postgres".
	Driver      string
	FeedbackDir string
	DatabaseURL string
}

// Repositories are the stores the tracker and question log run on.
type Repositories struct {
	Unanswered tracker.UnansweredRepository
	Questions  tracker.QuestionLogRepository
	// Ping checks the backing store; nil for the file driver.
	Ping  func(ctx context.Context) error
	close func()
}

// Close releases the backing store.
func (r *Repositories) Close() {
	if r.close != nil {
		r.close()
	}
}

// Open builds the repositories for opts.Driver. The postgres driver
// migrates its schema before returning.
func Open(ctx context.Context, opts Options) (*Repositories, error) {
	switch opts.Driver {
	case "", "file":
		return &Repositories{
			Unanswered: jsonfile.NewUnansweredRepository(opts.FeedbackDir),
			Questions:  jsonfile.NewQuestionLog(opts.FeedbackDir),
		}, nil
	case "postgres":
		db, err := postgres.NewDB(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return &Repositories{
			Unanswered: postgres.NewUnansweredRepo(db),
			Questions:  postgres.NewQuestionLogRepo(db),
			Ping:       db.Ping,
			close:      db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
