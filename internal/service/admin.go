package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/portfolio-ai/concierge/internal/corpus"
	"github.com/portfolio-ai/concierge/internal/model"
	"github.com/portfolio-ai/concierge/internal/tracker"
	"github.com/portfolio-ai/concierge/pkg/logger"
)

// AnswerResult is returned by MarkAnswered.
type AnswerResult struct {
	Question    model.UnansweredQuestion `json:"question"`
	ChunksAdded int                      `json:"chunks_added"`
}

// AdminService runs the knowledge-base and triage actions.
type AdminService struct {
	corpus    *corpus.Store
	tracker   *tracker.Tracker
	questions *tracker.QuestionLog
	logger    *logger.Logger
	now       func() time.Time
}

// NewAdminService creates an admin service.
func NewAdminService(store *corpus.Store, tr *tracker.Tracker, questions *tracker.QuestionLog, log *logger.Logger) *AdminService {
	if log == nil {
		log = logger.NewNop()
	}
	return &AdminService{
		corpus:    store,
		tracker:   tr,
		questions: questions,
		logger:    log.Named("admin"),
		now:       time.Now,
	}
}

// RecordAdminAnswer splits answer into admin-authored passages titled by
// question and appends them to the corpus.
func (s *AdminService) RecordAdminAnswer(ctx context.Context, question, answer string) (int, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return 0, fmt.Errorf("question and answer are required: %w", model.ErrInvalidInput)
	}

	passages := corpus.AdminPassages(question, answer, s.now())
	if len(passages) == 0 {
		return 0, nil
	}
	if err := s.corpus.Append(ctx, passages); err != nil {
		return 0, fmt.Errorf("add admin answer: %w", err)
	}
	s.logger.Info("admin answer added to knowledge base",
		zap.String("question", question),
		zap.Int("chunks_added", len(passages)),
	)
	return len(passages), nil
}

// MarkAnswered records the admin's answer. With addToKB the answer is also
// merged into the corpus; a failure there is logged and reported as zero
// chunks added, the status change stands.
func (s *AdminService) MarkAnswered(ctx context.Context, id, answer string, addToKB bool) (AnswerResult, error) {
	q, err := s.tracker.MarkAnswered(ctx, id, answer)
	if err != nil {
		return AnswerResult{}, err
	}
	result := AnswerResult{Question: q}
	if !addToKB {
		return result, nil
	}

	added, err := s.RecordAdminAnswer(ctx, q.Question, q.Answer)
	if err != nil {
		s.logger.Warn("failed to add answer to knowledge base",
			zap.String("question_id", q.ID),
			zap.Error(err),
		)
		return result, nil
	}
	result.ChunksAdded = added
	return result, nil
}

// MarkIgnored drops a question from the pending queue.
func (s *AdminService) MarkIgnored(ctx context.Context, id string) (model.UnansweredQuestion, error) {
	return s.tracker.MarkIgnored(ctx, id)
}

// ListUnanswered returns pending questions, or all when all is set.
func (s *AdminService) ListUnanswered(ctx context.Context, all bool) ([]model.UnansweredQuestion, error) {
	return s.tracker.List(ctx, all)
}

// RecentQuestions returns the newest question log entries.
func (s *AdminService) RecentQuestions(ctx context.Context, limit int) ([]model.QuestionLogEntry, error) {
	return s.questions.Recent(ctx, limit)
}

// Stats summarises the question log and triage queue.
func (s *AdminService) Stats(ctx context.Context) (model.QuestionStats, error) {
	return s.tracker.Stats(ctx)
}

// Passages lists the corpus, keeping passages whose id, title, content or
// tags contain search, ignoring case.
func (s *AdminService) Passages(ctx context.Context, search string) []model.Passage {
	all := s.corpus.Load(ctx)
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return all
	}
	out := make([]model.Passage, 0)
	for _, p := range all {
		if passageContains(p, search) {
			out = append(out, p)
		}
	}
	return out
}

func passageContains(p model.Passage, needle string) bool {
	if strings.Contains(strings.ToLower(p.ID), needle) ||
		strings.Contains(strings.ToLower(p.Title), needle) ||
		strings.Contains(strings.ToLower(p.Content), needle) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// Validate checks the current corpus.
func (s *AdminService) Validate(ctx context.Context) corpus.ValidationReport {
	return corpus.Validate(s.corpus.Load(ctx))
}

// ImportPDF adds the text of a PDF document to the corpus.
func (s *AdminService) ImportPDF(ctx context.Context, path string, opts corpus.ImportOptions) (int, error) {
	passages, err := corpus.ImportPDF(path, opts)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", path, err)
	}
	if err := s.corpus.Append(ctx, passages); err != nil {
		return 0, fmt.Errorf("import %s: %w", path, err)
	}
	s.logger.Info("imported document", zap.String("path", path), zap.Int("chunks_added", len(passages)))
	return len(passages), nil
}
