package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-ai/concierge/internal/model"
	"github.com/portfolio-ai/concierge/internal/storage/jsonfile"
)

func executeCLI(t *testing.T, dataDir string, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("DATA_DIR", dataDir)
	for _, key := range []string{"CORPUS_FILE", "FEEDBACK_DIR", "STORAGE_DRIVER", "NATS_ENABLED", "CONFIG_FILE", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeCorpusFixture(t *testing.T, dataDir string, passages ...model.Passage) {
	t.Helper()
	path := filepath.Join(dataDir, "knowledge-base", "chunks.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	if passages == nil {
		passages = []model.Passage{}
	}
	require.NoError(t, jsonfile.WriteJSONAtomic(path, passages))
}

func seedUnanswered(t *testing.T, dataDir, question string) string {
	t.Helper()
	dir := filepath.Join(dataDir, "feedback")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	q, _, err := jsonfile.NewUnansweredRepository(dir).RecordOccurrence(context.Background(), model.Occurrence{
		Question: question,
		Reply:    "I don't have that information.",
		At:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return q.ID
}

var resumePassage = model.Passage{
	ID:      "chunk_pita",
	Title:   "Pita Pit role",
	Content: "Sam managed the Pita Pit store in Toronto, leading a team of twelve people.",
	Tags:    []string{"work"},
}

func TestKBAddAnswerThenList(t *testing.T) {
	dataDir := t.TempDir()
	writeCorpusFixture(t, dataDir, resumePassage)

	stdout, _, err := executeCLI(t, dataDir,
		"kb", "add-answer",
		"--question", "Does he speak French?",
		"--answer", "Yes, Sam is fluent in French after two years in Paris.",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Added 1 passage(s)")

	stdout, _, err = executeCLI(t, dataDir, "kb", "list", "--search", "french")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Does he speak French?")
	assert.Contains(t, stdout, "passages: 1")
}

func TestKBAddAnswerRequiresFlags(t *testing.T) {
	dataDir := t.TempDir()
	writeCorpusFixture(t, dataDir)

	_, _, err := executeCLI(t, dataDir, "kb", "add-answer", "--question", "Q?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "answer" not set`)
}

func TestKBValidate(t *testing.T) {
	dataDir := t.TempDir()
	writeCorpusFixture(t, dataDir, resumePassage)

	stdout, _, err := executeCLI(t, dataDir, "kb", "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "valid: true")

	writeCorpusFixture(t, dataDir, resumePassage, resumePassage)
	stdout, _, err = executeCLI(t, dataDir, "kb", "validate")
	require.Error(t, err)
	assert.Contains(t, stdout, "duplicate id: chunk_pita")
}

func TestQuestionsTriage(t *testing.T) {
	dataDir := t.TempDir()
	writeCorpusFixture(t, dataDir, resumePassage)
	rustID := seedUnanswered(t, dataDir, "Does he know Rust?")
	goID := seedUnanswered(t, dataDir, "Does he know Go?")

	stdout, _, err := executeCLI(t, dataDir, "questions", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Does he know Rust?")
	assert.Contains(t, stdout, "questions: 2")

	stdout, _, err = executeCLI(t, dataDir,
		"questions", "answer", rustID,
		"--answer", "Sam has written small Rust services for log processing.",
		"--add-to-kb",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Answered "+rustID)
	assert.Contains(t, stdout, "Added 1 passage(s)")

	_, _, err = executeCLI(t, dataDir, "questions", "ignore", goID)
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, dataDir, "questions", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "questions: 0")

	stdout, _, err = executeCLI(t, dataDir, "questions", "list", "--all", "--json")
	require.NoError(t, err)
	var all []model.UnansweredQuestion
	require.NoError(t, json.Unmarshal([]byte(stdout), &all))
	assert.Len(t, all, 2)

	stdout, _, err = executeCLI(t, dataDir, "questions", "stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, "pending: 0")
	assert.Contains(t, stdout, "answered: 1")
	assert.Contains(t, stdout, "ignored: 1")

	stdout, _, err = executeCLI(t, dataDir, "kb", "list", "--search", "rust")
	require.NoError(t, err)
	assert.Contains(t, stdout, "passages: 1")
}

func TestQuestionsAnswerUnknownID(t *testing.T) {
	dataDir := t.TempDir()
	writeCorpusFixture(t, dataDir)

	_, _, err := executeCLI(t, dataDir, "questions", "answer", "missing", "--answer", "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestEventsTailDisabled(t *testing.T) {
	dataDir := t.TempDir()
	writeCorpusFixture(t, dataDir)

	_, _, err := executeCLI(t, dataDir, "events", "tail")
	require.ErrorIs(t, err, errEventsDisabled)
}

func TestBadConfigSurfacesOnRun(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("STORAGE_DRIVER", "sqlite")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_DRIVER")
}
