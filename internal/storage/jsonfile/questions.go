package jsonfile

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/portfolio-ai/concierge/internal/model"
)

// File names inside the feedback directory.
const (
	QuestionLogFile = "question-log.json"
	UnansweredFile  = "unanswered-questions.json"
)

type questionLogDoc struct {
	Questions   []model.QuestionLogEntry `json:"all_questions"`
	LastUpdated *time.Time               `json:"last_updated"`
}

type unansweredDoc struct {
	Questions   []model.UnansweredQuestion `json:"unanswered_questions"`
	LastUpdated *time.Time                 `json:"last_updated"`
}

// QuestionLog is an append-only question log stored in one JSON file.
type QuestionLog struct {
	path string
	mu   sync.Mutex
}

// NewQuestionLog stores the log under dir.
func NewQuestionLog(dir string) *QuestionLog {
	return &QuestionLog{path: filepath.Join(dir, QuestionLogFile)}
}

// Append adds an entry to the end of the log.
func (l *QuestionLog) Append(ctx context.Context, entry model.QuestionLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	return Locked(ctx, l.path, func() error {
		var doc questionLogDoc
		if err := ReadJSON(l.path, &doc); err != nil {
			return err
		}
		doc.Questions = append(doc.Questions, entry)
		now := time.Now().UTC()
		doc.LastUpdated = &now
		if err := WriteJSONAtomic(l.path, doc); err != nil {
			return fmt.Errorf("append question log: %w", err)
		}
		return nil
	})
}

// Recent returns up to limit entries, newest first.
func (l *QuestionLog) Recent(ctx context.Context, limit int) ([]model.QuestionLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var doc questionLogDoc
	if err := ReadJSON(l.path, &doc); err != nil {
		return nil, err
	}
	out := make([]model.QuestionLogEntry, 0, len(doc.Questions))
	for i := len(doc.Questions) - 1; i >= 0; i-- {
		out = append(out, doc.Questions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of logged entries.
func (l *QuestionLog) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var doc questionLogDoc
	if err := ReadJSON(l.path, &doc); err != nil {
		return 0, err
	}
	return len(doc.Questions), nil
}

// UnansweredRepository stores the unanswered question queue in one JSON file.
type UnansweredRepository struct {
	path string
	mu   sync.Mutex
}

// NewUnansweredRepository stores the queue under dir.
func NewUnansweredRepository(dir string) *UnansweredRepository {
	return &UnansweredRepository{path: filepath.Join(dir, UnansweredFile)}
}

// RecordOccurrence finds the entry matching the question case-insensitively
// and bumps it, or creates a pending entry. It reports whether the entry is new.
func (r *UnansweredRepository) RecordOccurrence(ctx context.Context, occ model.Occurrence) (model.UnansweredQuestion, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.UnansweredQuestion{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		out     model.UnansweredQuestion
		created bool
	)
	err := Locked(ctx, r.path, func() error {
		var err error
		out, created, err = r.recordLocked(occ)
		return err
	})
	if err != nil {
		return model.UnansweredQuestion{}, false, err
	}
	return out, created, nil
}

func (r *UnansweredRepository) recordLocked(occ model.Occurrence) (model.UnansweredQuestion, bool, error) {
	doc, err := r.load()
	if err != nil {
		return model.UnansweredQuestion{}, false, err
	}

	key := model.QuestionKey(occ.Question)
	for i := range doc.Questions {
		q := &doc.Questions[i]
		if model.QuestionKey(q.Question) != key {
			continue
		}
		q.AskCount++
		if occ.At.After(q.LastAsked) {
			q.LastAsked = occ.At
		}
		q.ReplyGiven = occ.Reply
		q.Metadata = model.MergeMetadata(q.Metadata, occ.Metadata)
		if err := r.save(doc); err != nil {
			return model.UnansweredQuestion{}, false, err
		}
		return *q, false, nil
	}

	q := model.UnansweredQuestion{
		ID:         uuid.NewString(),
		Question:   occ.Question,
		ReplyGiven: occ.Reply,
		FirstAsked: occ.At,
		LastAsked:  occ.At,
		AskCount:   1,
		Status:     model.StatusPending,
		Metadata:   model.MergeMetadata(nil, occ.Metadata),
	}
	doc.Questions = append(doc.Questions, q)
	if err := r.save(doc); err != nil {
		return model.UnansweredQuestion{}, false, err
	}
	return q, true, nil
}

// Get returns the entry with id.
func (r *UnansweredRepository) Get(ctx context.Context, id string) (model.UnansweredQuestion, error) {
	if err := ctx.Err(); err != nil {
		return model.UnansweredQuestion{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return model.UnansweredQuestion{}, err
	}
	for _, q := range doc.Questions {
		if q.ID == id {
			return q, nil
		}
	}
	return model.UnansweredQuestion{}, fmt.Errorf("unanswered question %s: %w", id, model.ErrNotFound)
}

// List returns all entries, most recently asked first.
func (r *UnansweredRepository) List(ctx context.Context) ([]model.UnansweredQuestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	out := append([]model.UnansweredQuestion(nil), doc.Questions...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastAsked.After(out[j].LastAsked)
	})
	return out, nil
}

// SetStatus moves an entry to status, storing answer when non-empty.
func (r *UnansweredRepository) SetStatus(ctx context.Context, id string, status model.QuestionStatus, answer string) (model.UnansweredQuestion, error) {
	if err := ctx.Err(); err != nil {
		return model.UnansweredQuestion{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out model.UnansweredQuestion
	err := Locked(ctx, r.path, func() error {
		var err error
		out, err = r.setStatusLocked(id, status, answer)
		return err
	})
	if err != nil {
		return model.UnansweredQuestion{}, err
	}
	return out, nil
}

func (r *UnansweredRepository) setStatusLocked(id string, status model.QuestionStatus, answer string) (model.UnansweredQuestion, error) {
	doc, err := r.load()
	if err != nil {
		return model.UnansweredQuestion{}, err
	}
	for i := range doc.Questions {
		q := &doc.Questions[i]
		if q.ID != id {
			continue
		}
		q.Status = status
		if answer != "" {
			q.Answer = answer
		}
		if err := r.save(doc); err != nil {
			return model.UnansweredQuestion{}, err
		}
		return *q, nil
	}
	return model.UnansweredQuestion{}, fmt.Errorf("unanswered question %s: %w", id, model.ErrNotFound)
}

func (r *UnansweredRepository) load() (unansweredDoc, error) {
	var doc unansweredDoc
	if err := ReadJSON(r.path, &doc); err != nil {
		return unansweredDoc{}, err
	}
	return doc, nil
}

func (r *UnansweredRepository) save(doc unansweredDoc) error {
	now := time.Now().UTC()
	doc.LastUpdated = &now
	if err := WriteJSONAtomic(r.path, doc); err != nil {
		return fmt.Errorf("save unanswered questions: %w", err)
	}
	return nil
}
