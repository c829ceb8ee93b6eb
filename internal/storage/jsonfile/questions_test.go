package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-ai/concierge/internal/model"
)

func TestRecordOccurrenceAggregatesCaseInsensitively(t *testing.T) {
	t.Parallel()

	repo := NewUnansweredRepository(t.TempDir())
	ctx := context.Background()
	first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	q1, created, err := repo.RecordOccurrence(ctx, model.Occurrence{
		Question: "Does he know Rust?",
		Reply:    "I don't have that information.",
		At:       first,
		Metadata: map[string]any{"ip": "1.1.1.1"},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, q1.AskCount)
	assert.Equal(t, model.StatusPending, q1.Status)

	q2, created, err := repo.RecordOccurrence(ctx, model.Occurrence{
		Question: "  does HE know rust?  ",
		Reply:    "Still no idea.",
		At:       second,
		Metadata: map[string]any{"conversation_id": "c-2"},
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, q1.ID, q2.ID)
	assert.Equal(t, 2, q2.AskCount)
	assert.Equal(t, first, q2.FirstAsked)
	assert.Equal(t, second, q2.LastAsked)
	assert.Equal(t, "Still no idea.", q2.ReplyGiven)
	assert.Equal(t, "1.1.1.1", q2.Metadata["ip"])
	assert.Equal(t, "c-2", q2.Metadata["conversation_id"])

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Does he know Rust?", all[0].Question)
}

func TestRecordOccurrenceConcurrentRepeatsShareEntry(t *testing.T) {
	t.Parallel()

	repo := NewUnansweredRepository(t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.RecordOccurrence(ctx, model.Occurrence{Question: "Salary?", At: time.Now()})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 10, all[0].AskCount)
}

func TestSetStatus(t *testing.T) {
	t.Parallel()

	repo := NewUnansweredRepository(t.TempDir())
	ctx := context.Background()

	q, _, err := repo.RecordOccurrence(ctx, model.Occurrence{Question: "Q", At: time.Now()})
	require.NoError(t, err)

	updated, err := repo.SetStatus(ctx, q.ID, model.StatusAnswered, "A")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAnswered, updated.Status)
	assert.Equal(t, "A", updated.Answer)

	got, err := repo.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	_, err = repo.SetStatus(ctx, "missing", model.StatusIgnored, "")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestQuestionLogRecentNewestFirst(t *testing.T) {
	t.Parallel()

	log := NewQuestionLog(t.TempDir())
	ctx := context.Background()

	for _, q := range []string{"one", "two", "three"} {
		require.NoError(t, log.Append(ctx, model.QuestionLogEntry{ID: q, Question: q}))
	}

	recent, err := log.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].ID)
	assert.Equal(t, "two", recent[1].ID)

	n, err := log.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReadJSONMissingAndCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var doc questionLogDoc
	require.NoError(t, ReadJSON(filepath.Join(dir, "nope.json"), &doc))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	assert.Error(t, ReadJSON(bad, &doc))
}

func TestWriteJSONAtomicLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, WriteJSONAtomic(path, map[string]int{"a": 1}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.json", entries[0].Name())
}

func TestCancelledContextShortCircuits(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewQuestionLog(t.TempDir()).Append(ctx, model.QuestionLogEntry{ID: "x"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLockedWaitsForOtherHolder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), UnansweredFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), dirMode))

	other := flock.New(LockPath(path))
	require.NoError(t, other.Lock())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ran := false
	err := Locked(ctx, path, func() error {
		ran = true
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)

	require.NoError(t, other.Unlock())
	require.NoError(t, Locked(context.Background(), path, func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestSeparateRepositoriesShareOneQueue(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	api := NewUnansweredRepository(dir)
	cli := NewUnansweredRepository(dir)
	ctx := context.Background()

	q, _, err := api.RecordOccurrence(ctx, model.Occurrence{Question: "Salary?", At: time.Now()})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, err := api.RecordOccurrence(ctx, model.Occurrence{Question: "salary?", At: time.Now()})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, _, err := cli.RecordOccurrence(ctx, model.Occurrence{Question: "SALARY?", At: time.Now()})
			assert.NoError(t, err)
		}()
	}
	_, err = cli.SetStatus(ctx, q.ID, model.StatusAnswered, "Not shared publicly.")
	require.NoError(t, err)
	wg.Wait()

	all, err := api.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 21, all[0].AskCount)
	assert.Equal(t, model.StatusAnswered, all[0].Status)
	assert.Equal(t, "Not shared publicly.", all[0].Answer)
}
