// Package tracker classifies replies that did not answer the question and
// aggregates repeat asks for admin triage.
package tracker

import (
	"strings"

	"github.com/portfolio-ai/concierge/internal/rules"
)

// ShortReplyLength bounds the contact-address rule.
const ShortReplyLength = 120

// DefaultRules are the built-in unanswered-reply checks, in order.
var DefaultRules = []rules.Limited{
	{Rule: rules.MustNew("sorry-cannot-access", `sorry.*(unable|don't|can't|do not|cannot).*(access|have|provide|find).*information`)},
	{Rule: rules.MustNew("please-contact-for", `please contact.*@.*for`)},
	{Rule: rules.MustNew("dont-have-information", `don't have (that|this|any).*information`)},
	{Rule: rules.MustNew("cant-provide-information", `can't provide.*information`)},
	{Rule: rules.MustNew("not-in-my-context", `(don't|do not) have (that|this) (in my|in the) (context|knowledge)`)},
	{Rule: rules.MustNew("outside-context", `(outside|beyond) (my|the) (context|knowledge)`)},
	{Rule: rules.MustNew("limited-information", `(limited|no).*information (on|about)`)},
	{Rule: rules.MustNew("reach-out-contact", `reach out.*contact`)},
	{Rule: rules.MustNew("not-within-knowledge", `not (in|within) (my|the) (context|knowledge base)`)},
	{Rule: rules.MustNew("i-dont-have", `i (don't|do not) have.*(that|this|specific)`)},
	{Rule: rules.MustNew("not-enough-info", `(don't|do not) have (enough|that) (info|context)`)},
	{Rule: rules.MustNew("short-contact-address", `\bcontact\b.*@|@.*\bcontact\b`), MaxLength: ShortReplyLength},
}

// Classifier decides whether a reply failed to answer.
type Classifier struct {
	rules []rules.Limited
}

// NewClassifier uses DefaultRules when list is nil.
func NewClassifier(list []rules.Limited) *Classifier {
	if list == nil {
		list = DefaultRules
	}
	return &Classifier{rules: list}
}

// Match returns the first rule the reply triggers.
func (c *Classifier) Match(reply string) (rules.Rule, bool) {
	if strings.TrimSpace(reply) == "" {
		return rules.Rule{}, false
	}
	length := len([]rune(strings.TrimSpace(reply)))
	for _, r := range c.rules {
		if r.MaxLength > 0 && length >= r.MaxLength {
			continue
		}
		if r.Match(reply) {
			return r.Rule, true
		}
	}
	return rules.Rule{}, false
}

// Classify reports whether reply is unanswered. The query is accepted for
// rules that may want it; the built-in set only inspects the reply.
func (c *Classifier) Classify(reply, _ string) bool {
	_, ok := c.Match(reply)
	return ok
}
