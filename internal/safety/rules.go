package safety

import (
	"fmt"
	"strings"

	"github.com/portfolio-ai/concierge/internal/rules"
)

// Rule is a named pattern. Rules are evaluated in order.
type Rule = rules.Rule

// NewRule compiles expr case-insensitively.
func NewRule(name, expr string) (Rule, error) {
	return rules.New(name, expr)
}

func mustRule(name, expr string) Rule {
	return rules.MustNew(name, expr)
}

// DefaultDisallowed catches replies that admit the grounding context lacks
// an answer.
var DefaultDisallowed = []Rule{
	mustRule("provided-documents-do-not-contain", `provided documents do not contain`),
	mustRule("the-provided-documents-dont-contain", `the provided documents (do not|don't) contain`),
	mustRule("documents-do-not-contain", `documents do not contain (information about|any)`),
	mustRule("i-am-sorry-documents", `I am sorry,?\s*but the provided documents`),
	mustRule("im-sorry-documents", `I'm sorry,?\s*but the provided documents`),
	mustRule("unfortunately-documents", `(sorry|unfortunately),?\s*the (provided )?documents (do not|don't)`),
	mustRule("dont-contain-information", `(do not|don't) contain information (about|regarding)`),
	mustRule("no-information-in-context", `no information (about|regarding|on) .* (in|in the) (provided )?(documents|context)`),
	mustRule("context-does-not-include", `(provided )?(documents|context) (do not|don't|does not|doesn't) (contain|include)`),
}

// Persona names the subject and the site pages replies may point to.
type Persona struct {
	SubjectName   string
	WorkPage      string
	EducationPage string
}

func (p Persona) withDefaults() Persona {
	if p.SubjectName == "" {
		p.SubjectName = "the candidate"
	}
	if p.WorkPage == "" {
		p.WorkPage = "/work"
	}
	if p.EducationPage == "" {
		p.EducationPage = "/education"
	}
	return p
}

// TopicReply is a canned reply used when the query matches Pattern.
type TopicReply struct {
	Rule
	Reply string
}

// PageLink appends Line when the query matches and the reply lacks Path.
type PageLink struct {
	Rule
	Path string
	Line string
}

func fallbackReplies(p Persona) ([]TopicReply, string) {
	topics := []TopicReply{
		{
			Rule:  mustRule("work", `\b(work|job|experience|career|company)\b`),
			Reply: fmt.Sprintf("%s's work experience and roles are covered in detail on the Work page. I'd suggest exploring that for the full picture. Is there something specific you'd like to know?", p.SubjectName),
		},
		{
			Rule:  mustRule("education", `\b(education|degree|school|study)\b`),
			Reply: fmt.Sprintf("%s's education and qualifications are on the Education page. Take a look there for the full picture. Anything else I can help with?", p.SubjectName),
		},
	}
	generic := fmt.Sprintf("I'd be happy to help. You might find more on %s's experience on the Work and Education pages. Is there something specific you'd like to know?", p.SubjectName)
	return topics, generic
}

func pageLinks(p Persona) []PageLink {
	return []PageLink{
		{
			Rule: mustRule("work", `\b(work|job|role|experience|career|company|companies|pita pit|beam suntory|employment)\b`),
			Path: p.WorkPage,
			Line: "For the full profile, see the Work page: " + p.WorkPage,
		},
		{
			Rule: mustRule("education", `\b(education|degree|school|university|college|isb|essec|christ|study|studies|qualification)\b`),
			Path: p.EducationPage,
			Line: "For the full profile, see the Education page: " + p.EducationPage,
		},
	}
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
