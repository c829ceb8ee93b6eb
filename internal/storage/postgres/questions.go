package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/portfolio-ai/concierge/internal/model"
)

// QuestionLogRepo is the append-only question log.
type QuestionLogRepo struct {
	db *DB
}

// NewQuestionLogRepo creates a question log over db.
func NewQuestionLogRepo(db *DB) *QuestionLogRepo {
	return &QuestionLogRepo{db: db}
}

// Append inserts one entry.
func (r *QuestionLogRepo) Append(ctx context.Context, e model.QuestionLogEntry) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO question_log (id, question, reply, asked_at, is_unanswered, small_talk, conversation_id, ip, chunks_used)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Question, e.Reply, e.AskedAt, e.IsUnanswered, e.SmallTalk, e.ConversationID, e.IP, e.ChunksUsed)
	if err != nil {
		return fmt.Errorf("insert question log: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *QuestionLogRepo) Recent(ctx context.Context, limit int) ([]model.QuestionLogEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, question, reply, asked_at, is_unanswered, small_talk, conversation_id, ip, chunks_used
FROM question_log ORDER BY asked_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list question log: %w", err)
	}
	defer rows.Close()

	out := make([]model.QuestionLogEntry, 0)
	for rows.Next() {
		var e model.QuestionLogEntry
		if err := rows.Scan(&e.ID, &e.Question, &e.Reply, &e.AskedAt, &e.IsUnanswered, &e.SmallTalk, &e.ConversationID, &e.IP, &e.ChunksUsed); err != nil {
			return nil, fmt.Errorf("scan question log: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question log: %w", err)
	}
	return out, nil
}

// Count returns the number of logged entries.
func (r *QuestionLogRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM question_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count question log: %w", err)
	}
	return n, nil
}

// UnansweredRepo is the unanswered question queue. Identity is the
// lower-cased trimmed question text held in question_key.
type UnansweredRepo struct {
	db *DB
}

// NewUnansweredRepo creates the queue over db.
func NewUnansweredRepo(db *DB) *UnansweredRepo {
	return &UnansweredRepo{db: db}
}

const unansweredColumns = `id, question, reply_given, first_asked, last_asked, ask_count, status, answer, metadata`

// RecordOccurrence inserts a pending entry or bumps the existing one in a
// single statement, so concurrent repeats never create two rows.
func (r *UnansweredRepo) RecordOccurrence(ctx context.Context, occ model.Occurrence) (model.UnansweredQuestion, bool, error) {
	metadata := occ.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	row := r.db.Pool.QueryRow(ctx, `
INSERT INTO unanswered_questions (id, question, question_key, reply_given, first_asked, last_asked, ask_count, status, metadata)
VALUES ($1, $2, $3, $4, $5, $5, 1, 'pending', $6)
ON CONFLICT (question_key) DO UPDATE SET
  ask_count = unanswered_questions.ask_count + 1,
  last_asked = GREATEST(unanswered_questions.last_asked, EXCLUDED.last_asked),
  reply_given = EXCLUDED.reply_given,
  metadata = unanswered_questions.metadata || EXCLUDED.metadata
RETURNING `+unansweredColumns+`, (xmax = 0) AS inserted`,
		uuid.NewString(), occ.Question, model.QuestionKey(occ.Question), occ.Reply, occ.At, metadata)

	var (
		q        model.UnansweredQuestion
		inserted bool
	)
	if err := row.Scan(&q.ID, &q.Question, &q.ReplyGiven, &q.FirstAsked, &q.LastAsked, &q.AskCount, &q.Status, &q.Answer, &q.Metadata, &inserted); err != nil {
		return model.UnansweredQuestion{}, false, fmt.Errorf("upsert unanswered question: %w", err)
	}
	return q, inserted, nil
}

// Get returns the entry with id.
func (r *UnansweredRepo) Get(ctx context.Context, id string) (model.UnansweredQuestion, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+unansweredColumns+` FROM unanswered_questions WHERE id = $1`, id)
	q, err := scanUnanswered(row)
	if err != nil {
		return model.UnansweredQuestion{}, notFound(id, err)
	}
	return q, nil
}

// List returns all entries, most recently asked first.
func (r *UnansweredRepo) List(ctx context.Context) ([]model.UnansweredQuestion, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+unansweredColumns+` FROM unanswered_questions ORDER BY last_asked DESC`)
	if err != nil {
		return nil, fmt.Errorf("list unanswered questions: %w", err)
	}
	defer rows.Close()

	out := make([]model.UnansweredQuestion, 0)
	for rows.Next() {
		q, err := scanUnanswered(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unanswered question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unanswered questions: %w", err)
	}
	return out, nil
}

// SetStatus moves an entry to status, storing answer when non-empty.
func (r *UnansweredRepo) SetStatus(ctx context.Context, id string, status model.QuestionStatus, answer string) (model.UnansweredQuestion, error) {
	row := r.db.Pool.QueryRow(ctx, `
UPDATE unanswered_questions
SET status = $2, answer = COALESCE(NULLIF($3, ''), answer)
WHERE id = $1
RETURNING `+unansweredColumns, id, string(status), answer)
	q, err := scanUnanswered(row)
	if err != nil {
		return model.UnansweredQuestion{}, notFound(id, err)
	}
	return q, nil
}

func scanUnanswered(row pgx.Row) (model.UnansweredQuestion, error) {
	var q model.UnansweredQuestion
	err := row.Scan(&q.ID, &q.Question, &q.ReplyGiven, &q.FirstAsked, &q.LastAsked, &q.AskCount, &q.Status, &q.Answer, &q.Metadata)
	return q, err
}

func notFound(id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("unanswered question %s: %w", id, model.ErrNotFound)
	}
	return fmt.Errorf("unanswered question %s: %w", id, err)
}
