package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/portfolio-ai/concierge/internal/model"
	"github.com/portfolio-ai/concierge/pkg/logger"
	"github.com/portfolio-ai/concierge/pkg/metrics"
)

// UnansweredRepository persists the triage queue. RecordOccurrence must be
// an atomic find-or-create on the case-insensitive question text.
type UnansweredRepository interface {
	RecordOccurrence(ctx context.Context, occ model.Occurrence) (model.UnansweredQuestion, bool, error)
	Get(ctx context.Context, id string) (model.UnansweredQuestion, error)
	List(ctx context.Context) ([]model.UnansweredQuestion, error)
	SetStatus(ctx context.Context, id string, status model.QuestionStatus, answer string) (model.UnansweredQuestion, error)
}

// QuestionLogRepository persists the append-only question log.
type QuestionLogRepository interface {
	Append(ctx context.Context, entry model.QuestionLogEntry) error
	Recent(ctx context.Context, limit int) ([]model.QuestionLogEntry, error)
	Count(ctx context.Context) (int, error)
}

// Publisher receives question events. It is optional.
type Publisher interface {
	PublishQuestionEvent(ctx context.Context, event *model.QuestionEvent) error
}

// Options configures a Tracker.
type Options struct {
	Classifier *Classifier
	Publisher  Publisher
	Logger     *logger.Logger
	Now        func() time.Time
}

// Tracker records unanswered questions and drives their triage.
type Tracker struct {
	classifier *Classifier
	repo       UnansweredRepository
	log        QuestionLogRepository
	events     eventSink
	now        func() time.Time
}

// New creates a tracker over the given repositories.
func New(repo UnansweredRepository, log QuestionLogRepository, opts Options) *Tracker {
	if opts.Classifier == nil {
		opts.Classifier = NewClassifier(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		classifier: opts.Classifier,
		repo:       repo,
		log:        log,
		events:     eventSink{pub: opts.Publisher, logger: opts.Logger.Named("tracker")},
		now:        opts.Now,
	}
}

// Classify reports whether reply failed to answer query.
func (t *Tracker) Classify(reply, query string) bool {
	return t.classifier.Classify(reply, query)
}

// Record counts one unanswered ask of question. A repeat ask of the same
// text, ignoring case, updates the existing entry.
func (t *Tracker) Record(ctx context.Context, question, reply string, metadata map[string]any) (model.UnansweredQuestion, error) {
	if strings.TrimSpace(question) == "" {
		return model.UnansweredQuestion{}, fmt.Errorf("record unanswered: %w", model.ErrInvalidInput)
	}
	at := t.now().UTC()
	q, created, err := t.repo.RecordOccurrence(ctx, model.Occurrence{
		Question: question,
		Reply:    reply,
		At:       at,
		Metadata: metadata,
	})
	if err != nil {
		return model.UnansweredQuestion{}, fmt.Errorf("record unanswered: %w", err)
	}
	metrics.UnansweredTotal.Inc()

	t.events.publish(ctx, &model.QuestionEvent{
		ID:         uuid.New().String(),
		Type:       model.EventTypeQuestionUnanswered,
		QuestionID: q.ID,
		Question:   q.Question,
		Reply:      reply,
		Metadata:   map[string]any{"ask_count": q.AskCount, "created": created},
		CreatedAt:  at,
	})
	return q, nil
}

// Get returns one unanswered question.
func (t *Tracker) Get(ctx context.Context, id string) (model.UnansweredQuestion, error) {
	return t.repo.Get(ctx, id)
}

// MarkAnswered moves a question to answered with the admin's answer.
func (t *Tracker) MarkAnswered(ctx context.Context, id, answer string) (model.UnansweredQuestion, error) {
	if strings.TrimSpace(answer) == "" {
		return model.UnansweredQuestion{}, fmt.Errorf("answer is required: %w", model.ErrInvalidInput)
	}
	return t.transition(ctx, id, model.StatusAnswered, strings.TrimSpace(answer), model.EventTypeQuestionAnswered)
}

// MarkIgnored moves a question to ignored.
func (t *Tracker) MarkIgnored(ctx context.Context, id string) (model.UnansweredQuestion, error) {
	return t.transition(ctx, id, model.StatusIgnored, "", model.EventTypeQuestionIgnored)
}

func (t *Tracker) transition(ctx context.Context, id string, status model.QuestionStatus, answer string, evType model.EventType) (model.UnansweredQuestion, error) {
	q, err := t.repo.SetStatus(ctx, id, status, answer)
	if err != nil {
		return model.UnansweredQuestion{}, fmt.Errorf("mark %s: %w", status, err)
	}
	t.events.publish(ctx, &model.QuestionEvent{
		ID:         uuid.New().String(),
		Type:       evType,
		QuestionID: q.ID,
		Question:   q.Question,
		Reply:      answer,
		CreatedAt:  t.now().UTC(),
	})
	return q, nil
}

// List returns pending questions, or every question when all is set,
// most recently asked first.
func (t *Tracker) List(ctx context.Context, all bool) ([]model.UnansweredQuestion, error) {
	qs, err := t.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unanswered: %w", err)
	}
	if all {
		return qs, nil
	}
	pending := make([]model.UnansweredQuestion, 0, len(qs))
	for _, q := range qs {
		if q.Status == model.StatusPending {
			pending = append(pending, q)
		}
	}
	return pending, nil
}

// Stats counts logged questions and the triage queue by status.
func (t *Tracker) Stats(ctx context.Context) (model.QuestionStats, error) {
	var stats model.QuestionStats
	if t.log != nil {
		total, err := t.log.Count(ctx)
		if err != nil {
			return stats, fmt.Errorf("count questions: %w", err)
		}
		stats.TotalQuestions = total
	}
	qs, err := t.repo.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("list unanswered: %w", err)
	}
	for _, q := range qs {
		switch q.Status {
		case model.StatusPending:
			stats.Pending++
		case model.StatusAnswered:
			stats.Answered++
		case model.StatusIgnored:
			stats.Ignored++
		}
	}
	return stats, nil
}

type eventSink struct {
	pub    Publisher
	logger *logger.Logger
}

// publish is best effort; a failed publish never fails the caller.
func (s eventSink) publish(ctx context.Context, ev *model.QuestionEvent) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishQuestionEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to publish question event",
			zap.String("type", string(ev.Type)),
			zap.String("question_id", ev.QuestionID),
			zap.Error(err),
		)
	}
}
