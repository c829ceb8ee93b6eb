package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-ai/concierge/internal/model"
)

func TestOpenFileDriver(t *testing.T) {
	ctx := context.Background()
	repos, err := Open(ctx, Options{Driver: "file", FeedbackDir: t.TempDir()})
	require.NoError(t, err)
	defer repos.Close()

	assert.Nil(t, repos.Ping)

	require.NoError(t, repos.Questions.Append(ctx, model.QuestionLogEntry{
		ID:       "q_1",
		Question: "Where did he study?",
		AskedAt:  time.Now(),
	}))
	n, err := repos.Questions.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "sqlite"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}
