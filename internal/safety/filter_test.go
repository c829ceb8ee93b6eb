package safety

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var persona = Persona{SubjectName: "Sam", WorkPage: "/work", EducationPage: "/education"}

func TestDisallowedRulesFireIndividually(t *testing.T) {
	t.Parallel()

	f := NewFilter(Options{Persona: persona})
	samples := map[string]string{
		"provided-documents-do-not-contain":   "Well, the provided documents do not contain that detail.",
		"the-provided-documents-dont-contain": "Sadly the provided documents don't contain any salary data.",
		"documents-do-not-contain":            "These documents do not contain information about hobbies.",
		"i-am-sorry-documents":                "I am sorry, but the provided documents are silent here.",
		"im-sorry-documents":                  "I'm sorry but the provided documents skip this topic.",
		"unfortunately-documents":             "Unfortunately, the documents don't say much about that.",
		"dont-contain-information":            "My notes don't contain information regarding Rust at all.",
		"no-information-in-context":           "There is no information about Rust skills in the context.",
		"context-does-not-include":            "The context does not include his favourite language.",
	}

	for name, text := range samples {
		rule, ok := f.Match(text)
		require.True(t, ok, name)
		assert.Equal(t, name, rule.Name, text)
	}
}

func TestShortRepliesAreNeverDisallowed(t *testing.T) {
	t.Parallel()

	f := NewFilter(Options{})
	assert.False(t, f.IsDisallowed("documents do not co"))
	assert.False(t, f.IsDisallowed("He led the team at Pita Pit for two years."))
}

type retryScript struct {
	replies []string
	err     error
	calls   int
}

func (r *retryScript) fn(_ context.Context, _ string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.replies[r.calls-1], nil
}

func TestApplyStates(t *testing.T) {
	t.Parallel()

	const bad = "I'm sorry, but the provided documents do not contain information about that."

	tests := []struct {
		name      string
		raw       string
		query     string
		retry     *retryScript
		want      string
		outcome   Outcome
		wantCalls int
	}{
		{
			name:    "passes clean reply",
			raw:     "**Sam** ran operations.",
			query:   "what did sam do",
			retry:   &retryScript{},
			want:    "Sam ran operations.",
			outcome: OutcomePassed,
		},
		{
			name:      "repaired by one retry",
			raw:       bad,
			query:     "tell me about rust",
			retry:     &retryScript{replies: []string{"He mostly works in *Python*."}},
			want:      "He mostly works in Python.",
			outcome:   OutcomeRepaired,
			wantCalls: 1,
		},
		{
			name:      "work fallback after second violation",
			raw:       bad,
			query:     "What was his job at Pita Pit?",
			retry:     &retryScript{replies: []string{bad}},
			want:      "Sam's work experience and roles are covered in detail on the Work page.",
			outcome:   OutcomeFallback,
			wantCalls: 1,
		},
		{
			name:      "education fallback when retry fails",
			raw:       bad,
			query:     "Which degree did he study?",
			retry:     &retryScript{err: errors.New("timeout")},
			want:      "Sam's education and qualifications are on the Education page.",
			outcome:   OutcomeFallback,
			wantCalls: 1,
		},
		{
			name:      "generic fallback",
			raw:       bad,
			query:     "Does he like cats?",
			retry:     &retryScript{replies: []string{bad}},
			want:      "I'd be happy to help. You might find more on Sam's experience",
			outcome:   OutcomeFallback,
			wantCalls: 1,
		},
		{
			name:    "empty reply falls back without retry",
			raw:     "  ** **  ",
			query:   "anything",
			retry:   &retryScript{},
			want:    "I'd be happy to help.",
			outcome: OutcomeFallback,
		},
	}

	f := NewFilter(Options{Persona: persona})
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := f.Apply(context.Background(), tt.query, tt.raw, tt.retry.fn)
			assert.True(t, strings.HasPrefix(res.Reply, tt.want), res.Reply)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.wantCalls, tt.retry.calls)
			assert.False(t, f.IsDisallowed(res.Reply))
		})
	}
}

func TestApplyWithoutRetryFallsBack(t *testing.T) {
	t.Parallel()

	f := NewFilter(Options{Persona: persona})
	res := f.Apply(context.Background(), "career", "Unfortunately, the documents don't mention it at all.", nil)
	assert.Equal(t, OutcomeFallback, res.Outcome)
	assert.Equal(t, []string{"unfortunately-documents"}, res.Rejected)
}

func TestAppendPageLinks(t *testing.T) {
	t.Parallel()

	f := NewFilter(Options{Persona: persona})

	got := f.AppendPageLinks("He managed a store.  ", "What did he do at Pita Pit?")
	assert.Equal(t, "He managed a store.\n\nFor the full profile, see the Work page: /work", got)

	both := f.AppendPageLinks("Answer.", "How did his ESSEC degree help his career?")
	assert.Equal(t, "Answer.\n\nFor the full profile, see the Work page: /work\nFor the full profile, see the Education page: /education", both)

	already := f.AppendPageLinks("See /work for more.", "his job")
	assert.Equal(t, "See /work for more.", already)

	assert.Equal(t, "Hi!", f.AppendPageLinks("Hi!", "does he like cats"))
	assert.Equal(t, "", f.AppendPageLinks("", "job"))
}

func TestNewRuleRejectsBadPattern(t *testing.T) {
	t.Parallel()

	_, err := NewRule("broken", `(unclosed`)
	require.Error(t, err)
}
