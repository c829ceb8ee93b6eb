package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/portfolio-ai/concierge/internal/rules"
)

// DefaultSmallTalkMaxWords limits small-talk routing to short messages so a
// greeting followed by a real question still reaches retrieval.
const DefaultSmallTalkMaxWords = 6

// socialEnd closes a small-talk pattern: only punctuation may follow.
const socialEnd = `[\s!.,?]*$`

// DefaultSmallTalk returns the built-in greeting rules for p. Each pattern
// spans the whole message, so "Hi, what about Pita Pit?" is not small talk.
func DefaultSmallTalk(p Persona) []rules.Reply {
	p = p.withDefaults()
	greeting := `(hi|hello|hey|greetings|good (morning|afternoon|evening))`
	addressee := fmt.Sprintf(`([\s,]+(there|everyone|all|again|friend|%s))?`, regexp.QuoteMeta(p.AssistantName))
	return []rules.Reply{
		{
			Rule: rules.MustNew("greeting", `^`+greeting+addressee+socialEnd),
			Text: fmt.Sprintf("Hello! I'm %s, here to help you learn about %s's professional background, experience, and career interests. What would you like to know?", p.AssistantName, p.SubjectName),
		},
		{
			Rule: rules.MustNew("how-are-you", `^(`+greeting+addressee+`[\s,!.]*)?(how are you( doing)?( today)?|how's it going|what's up)`+socialEnd),
			Text: fmt.Sprintf("I'm doing well, thank you! I'm here to help you learn about %s's experience, skills, education, and career goals. What would you like to know?", p.SubjectName),
		},
		{
			Rule: rules.MustNew("thanks", `^(thanks|thank you|thx)( (so|very) much| a lot| again)?`+addressee+socialEnd),
			Text: fmt.Sprintf("You're welcome! Feel free to ask me anything about %s's background, experience, skills, or career interests.", p.SubjectName),
		},
		{
			Rule: rules.MustNew("goodbye", `^(bye|goodbye|see you|see ya)( now| later| then)?`+addressee+socialEnd),
			Text: fmt.Sprintf("Goodbye! If you have any more questions about %s's professional background, feel free to come back anytime.", p.SubjectName),
		},
	}
}

// matchSmallTalk returns the canned reply for a short social message.
func matchSmallTalk(list []rules.Reply, maxWords int, msg string) (rules.Reply, bool) {
	msg = strings.TrimSpace(msg)
	if msg == "" || len(strings.Fields(msg)) > maxWords {
		return rules.Reply{}, false
	}
	for _, r := range list {
		if r.Match(msg) {
			return r, true
		}
	}
	return rules.Reply{}, false
}
