package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-ai/concierge/internal/model"
	"github.com/portfolio-ai/concierge/internal/rules"
)

func TestBuildSystemPrompt(t *testing.T) {
	t.Parallel()

	p := Persona{AssistantName: "Sam.AI", SubjectName: "Sam", ContactEmail: "hello@sam.dev"}
	prompt := BuildSystemPrompt(p, []model.Passage{
		{Title: "Pita Pit role", Content: "Managed a store."},
		{Content: "No title here."},
	}, map[string]any{"name": "Sam"})

	assert.True(t, strings.HasPrefix(prompt, "You are Sam.AI, a professional recruiting concierge representing Sam."))
	assert.Contains(t, prompt, "[PASSAGE 1]\nTitle: Pita Pit role\nContent: Managed a store.\n\n---\n\n[PASSAGE 2]\nTitle: Untitled")
	assert.Contains(t, prompt, "No title here.\n\n---\n\n[PROFILE DATA]\n{\n  \"name\": \"Sam\"\n}")
	assert.Contains(t, prompt, "hello@sam.dev")
}

func TestBuildSystemPromptWithoutPassages(t *testing.T) {
	t.Parallel()

	prompt := BuildSystemPrompt(Persona{}, nil, nil)
	assert.NotContains(t, prompt, "[PASSAGE")
	assert.True(t, strings.HasSuffix(prompt, "[PROFILE DATA]\n{}"))
	assert.Contains(t, prompt, "the candidate")
}

func TestLoadProfile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	p, err := LoadProfile(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, p)

	good := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"name":"Sam","location":"Paris"}`), 0o644))
	p, err = LoadProfile(good)
	require.NoError(t, err)
	assert.Equal(t, "Paris", p["location"])

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{nope`), 0o644))
	p, err = LoadProfile(bad)
	assert.Error(t, err)
	assert.Empty(t, p)
}

func TestExpandShortReply(t *testing.T) {
	t.Parallel()

	offer := []model.Turn{
		{Role: model.RoleUser, Content: "What did he do?"},
		{Role: model.RoleAssistant, Content: "He ran a store. Are you interested in his leadership style?"},
	}
	skills := []model.Turn{
		{Role: model.RoleAssistant, Content: "He has strong analytics skills."},
	}

	tests := []struct {
		name    string
		msg     string
		history []model.Turn
		want    string
	}{
		{name: "accepts offered topic", msg: "Yes", history: offer, want: "tell me about leadership style"},
		{name: "sure with punctuation", msg: "sure!", history: offer, want: "tell me about leadership style"},
		{name: "more picks keyword", msg: "tell me more", history: skills, want: "tell me more about skills"},
		{name: "yes without offer", msg: "yes", history: skills, want: "yes"},
		{name: "no history", msg: "yes", history: nil, want: "yes"},
		{name: "regular question", msg: "Where did he study?", history: offer, want: "Where did he study?"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExpandShortReply(tt.msg, tt.history, DefaultExpansions))
		})
	}
}

func TestMatchSmallTalk(t *testing.T) {
	t.Parallel()

	list := DefaultSmallTalk(Persona{AssistantName: "Sam.AI", SubjectName: "Sam"})
	tests := []struct {
		msg  string
		rule string
	}{
		{msg: "Hello", rule: "greeting"},
		{msg: "good morning!", rule: "greeting"},
		{msg: "How are you?", rule: "how-are-you"},
		{msg: "thanks a lot", rule: "thanks"},
		{msg: "Bye", rule: "goodbye"},
		{msg: "Hi there!", rule: "greeting"},
		{msg: "hello Sam.AI", rule: "greeting"},
		{msg: "Hi, how are you doing today?", rule: "how-are-you"},
		{msg: "Thank you so much!", rule: "thanks"},
		{msg: "see you later", rule: "goodbye"},
		{msg: "Hi, what did he do at Pita Pit?", rule: ""},
		{msg: "Hi, what about Pita Pit?", rule: ""},
		{msg: "Hello, does he know Rust?", rule: ""},
		{msg: "Thanks, and his education?", rule: ""},
		{msg: "Hey Rust?", rule: ""},
		{msg: "Hiking experience?", rule: ""},
		{msg: "Which companies did he work for?", rule: ""},
	}
	for _, tt := range tests {
		r, ok := matchSmallTalk(list, DefaultSmallTalkMaxWords, tt.msg)
		if tt.rule == "" {
			assert.False(t, ok, tt.msg)
			continue
		}
		require.True(t, ok, tt.msg)
		assert.Equal(t, tt.rule, r.Name, tt.msg)
	}

	custom := []rules.Reply{{Rule: rules.MustNew("yo", `^yo\b`), Text: "Yo!"}}
	r, ok := matchSmallTalk(custom, 3, "yo there")
	require.True(t, ok)
	assert.Equal(t, "Yo!", r.Text)
}
