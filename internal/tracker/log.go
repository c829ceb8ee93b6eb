package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/portfolio-ai/concierge/internal/model"
	"github.com/portfolio-ai/concierge/pkg/logger"
)

// DefaultRecentLimit is used when Recent is called without a limit.
const DefaultRecentLimit = 50

// QuestionLog appends one entry per chat message and streams it to the
// optional publisher.
type QuestionLog struct {
	repo   QuestionLogRepository
	events eventSink
	now    func() time.Time
}

// NewQuestionLog wraps repo. pub may be nil.
func NewQuestionLog(repo QuestionLogRepository, pub Publisher, log *logger.Logger, now func() time.Time) *QuestionLog {
	if log == nil {
		log = logger.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &QuestionLog{
		repo:   repo,
		events: eventSink{pub: pub, logger: log.Named("question_log")},
		now:    now,
	}
}

// Log stores entry, filling its id and timestamp when unset.
func (l *QuestionLog) Log(ctx context.Context, entry model.QuestionLogEntry) (model.QuestionLogEntry, error) {
	if entry.ID == "" {
		entry.ID = "q_" + uuid.New().String()
	}
	if entry.AskedAt.IsZero() {
		entry.AskedAt = l.now().UTC()
	}
	if err := l.repo.Append(ctx, entry); err != nil {
		return entry, fmt.Errorf("log question: %w", err)
	}

	l.events.publish(ctx, &model.QuestionEvent{
		ID:             uuid.New().String(),
		Type:           model.EventTypeQuestionLogged,
		ConversationID: entry.ConversationID,
		QuestionID:     entry.ID,
		Question:       entry.Question,
		Reply:          entry.Reply,
		Metadata: map[string]any{
			"is_unanswered": entry.IsUnanswered,
			"small_talk":    entry.SmallTalk,
			"chunks_used":   entry.ChunksUsed,
		},
		CreatedAt: entry.AskedAt,
	})
	return entry, nil
}

// Recent returns up to limit entries, newest first.
func (l *QuestionLog) Recent(ctx context.Context, limit int) ([]model.QuestionLogEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	entries, err := l.repo.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent questions: %w", err)
	}
	return entries, nil
}
