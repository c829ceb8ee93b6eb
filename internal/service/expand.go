package service

import (
	"regexp"
	"strings"

	"github.com/portfolio-ai/concierge/internal/model"
)

// Expansion rewrites an elliptical reply using the last assistant turn.
type Expansion struct {
	Name  string
	Apply func(msg, lastAssistant string) (string, bool)
}

var (
	affirmatives  = map[string]bool{"yes": true, "yeah": true, "yep": true, "sure": true}
	moreRequests  = map[string]bool{"tell me more": true, "more": true}
	offerPattern  = regexp.MustCompile(`(?i)interested in (?:his |their |her )?([^?]+)`)
	topicKeywords = []string{"leadership", "experience", "skills", "education", "projects"}
)

// DefaultExpansions are evaluated in order; the first that applies wins.
var DefaultExpansions = []Expansion{
	{
		Name: "accept-offer",
		Apply: func(msg, last string) (string, bool) {
			if !affirmatives[msg] || !strings.Contains(last, "?") {
				return "", false
			}
			m := offerPattern.FindStringSubmatch(last)
			if m == nil {
				return "", false
			}
			topic := strings.TrimSpace(m[1])
			if topic == "" {
				return "", false
			}
			return "tell me about " + topic, true
		},
	},
	{
		Name: "more-on-topic",
		Apply: func(msg, last string) (string, bool) {
			if !moreRequests[msg] {
				return "", false
			}
			lower := strings.ToLower(last)
			for _, kw := range topicKeywords {
				if strings.Contains(lower, kw) {
					return "tell me more about " + kw, true
				}
			}
			return "", false
		},
	},
}

// ExpandShortReply turns "yes" or "tell me more" into a query naming the
// topic the assistant last offered. Anything else is returned unchanged.
func ExpandShortReply(message string, history []model.Turn, expansions []Expansion) string {
	last := lastAssistant(history)
	if last == "" {
		return message
	}
	msg := strings.ToLower(strings.TrimSpace(strings.TrimRight(message, ".!")))
	for _, e := range expansions {
		if out, ok := e.Apply(msg, last); ok {
			return out
		}
	}
	return message
}

func lastAssistant(history []model.Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}
