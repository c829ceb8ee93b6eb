package tracker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-ai/concierge/internal/rules"
)

func TestClassifierRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rule  string
		reply string
	}{
		{rule: "sorry-cannot-access", reply: "I'm sorry, but I am unable to access that information right now."},
		{rule: "please-contact-for", reply: "Please contact sam@example.com for salary details."},
		{rule: "dont-have-information", reply: "I don't have that information yet."},
		{rule: "cant-provide-information", reply: "I can't provide salary information."},
		{rule: "not-in-my-context", reply: "I do not have this in my knowledge right now."},
		{rule: "outside-context", reply: "That is outside my knowledge."},
		{rule: "limited-information", reply: "There is limited information about his hobbies."},
		{rule: "reach-out-contact", reply: "Feel free to reach out via the contact form."},
		{rule: "not-within-knowledge", reply: "That's not within the knowledge base."},
		{rule: "i-dont-have", reply: "I do not have specific numbers on that."},
		{rule: "not-enough-info", reply: "You don't have enough context here, ask away."},
		{rule: "short-contact-address", reply: "Best to contact Sam at sam@example.com."},
	}

	c := NewClassifier(nil)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.rule, func(t *testing.T) {
			t.Parallel()
			r, ok := c.Match(tt.reply)
			require.True(t, ok)
			assert.Equal(t, tt.rule, r.Name)
			assert.True(t, c.Classify(tt.reply, "question"))
		})
	}
}

func TestClassifierAnsweredReplies(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil)
	assert.False(t, c.Classify("He managed the Pita Pit store for two years.", "What did he do at Pita Pit?"))
	assert.False(t, c.Classify("", "anything"))
	assert.False(t, c.Classify("   ", "anything"))

	long := "To contact him use sam@example.com. " + strings.Repeat("He built dashboards. ", 6)
	require.GreaterOrEqual(t, len(long), ShortReplyLength)
	assert.False(t, c.Classify(long, "how do I reach him"))
}

func TestClassifierCustomRules(t *testing.T) {
	t.Parallel()

	c := NewClassifier([]rules.Limited{{Rule: rules.MustNew("nope", `^nope$`)}})
	assert.True(t, c.Classify("Nope", "q"))
	assert.False(t, c.Classify("I don't have that information.", "q"))
}
