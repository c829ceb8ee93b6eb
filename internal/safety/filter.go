package safety

import (
	"context"
	"strings"

	"github.com/portfolio-ai/concierge/internal/rules"
	"github.com/portfolio-ai/concierge/pkg/metrics"
)

// Outcome reports how Apply produced its reply.
type Outcome string

const (
	OutcomePassed   Outcome = "passed"
	OutcomeRepaired Outcome = "repaired"
	OutcomeFallback Outcome = "fallback"
)

// DefaultMinCheckLength is the reply length below which the disallowed
// patterns are not evaluated.
const DefaultMinCheckLength = 20

const maxRetries = 1

// RetryInstruction asks the model to rewrite a rejected reply.
const RetryInstruction = "Your previous response was not appropriate. Do NOT say that documents or context do not contain information. " +
	"Give a brief helpful answer: if you do not have specific details, suggest exploring the Work or Education pages, or invite the user to ask something else. " +
	"Reply now with only the new response."

// RetryFunc asks the model for a rewrite of a rejected reply.
type RetryFunc func(ctx context.Context, rejected string) (string, error)

// Result is the outcome of Apply.
type Result struct {
	Reply   string
	Outcome Outcome
	// Rejected names the rules that fired, in the order they fired.
	Rejected []string
	// RetryErr is set when the retry call itself failed.
	RetryErr error
}

// Options configures a Filter.
type Options struct {
	// Disallowed replaces DefaultDisallowed when non-nil.
	Disallowed     []Rule
	Persona        Persona
	MinCheckLength int
	// PageLinks replaces the default work and education links when non-nil.
	PageLinks []PageLink
}

// Filter cleans replies, blocks disallowed phrasing and appends page
// pointers.
type Filter struct {
	disallowed []Rule
	fallbacks  []TopicReply
	generic    string
	links      []PageLink
	minCheck   int
}

// NewFilter creates a filter.
func NewFilter(opts Options) *Filter {
	persona := opts.Persona.withDefaults()
	disallowed := opts.Disallowed
	if disallowed == nil {
		disallowed = DefaultDisallowed
	}
	links := opts.PageLinks
	if links == nil {
		links = pageLinks(persona)
	}
	minCheck := opts.MinCheckLength
	if minCheck <= 0 {
		minCheck = DefaultMinCheckLength
	}
	fallbacks, generic := fallbackReplies(persona)
	return &Filter{
		disallowed: disallowed,
		fallbacks:  fallbacks,
		generic:    generic,
		links:      links,
		minCheck:   minCheck,
	}
}

// Match returns the first disallowed rule text matches.
func (f *Filter) Match(text string) (Rule, bool) {
	t := strings.TrimSpace(text)
	if len([]rune(t)) < f.minCheck {
		return Rule{}, false
	}
	return rules.FirstMatch(f.disallowed, t)
}

// IsDisallowed reports whether text matches any disallowed rule.
func (f *Filter) IsDisallowed(text string) bool {
	_, ok := f.Match(text)
	return ok
}

type state int

const (
	stateCheck state = iota
	stateRetry
	stateFallback
)

// Apply cleans raw and checks it. A disallowed reply gets at most one
// rewrite through retry; if that is still disallowed, fails, or no retry is
// given, the topic fallback for query is returned instead.
func (f *Filter) Apply(ctx context.Context, query, raw string, retry RetryFunc) Result {
	res := Result{Reply: Clean(raw)}
	retries := 0
	st := stateCheck

	for {
		switch st {
		case stateCheck:
			rule, bad := f.Match(res.Reply)
			if !bad && res.Reply != "" {
				res.Outcome = OutcomePassed
				if retries > 0 {
					res.Outcome = OutcomeRepaired
				}
				metrics.RecordSafetyOutcome(string(res.Outcome))
				return res
			}
			if bad {
				res.Rejected = append(res.Rejected, rule.Name)
			}
			if !bad || retry == nil || retries >= maxRetries {
				st = stateFallback
				continue
			}
			st = stateRetry

		case stateRetry:
			retries++
			rewritten, err := retry(ctx, res.Reply)
			if err != nil {
				res.RetryErr = err
				st = stateFallback
				continue
			}
			res.Reply = Clean(rewritten)
			st = stateCheck

		case stateFallback:
			res.Reply = f.Fallback(query)
			res.Outcome = OutcomeFallback
			metrics.RecordSafetyOutcome(string(res.Outcome))
			return res
		}
	}
}

// Fallback returns the canned reply for the query's topic.
func (f *Filter) Fallback(query string) string {
	q := normalizeQuery(query)
	for _, t := range f.fallbacks {
		if t.Pattern.MatchString(q) {
			return t.Reply
		}
	}
	return f.generic
}

// AppendPageLinks adds one pointer line per topic the query is about, unless
// the reply already mentions that page.
func (f *Filter) AppendPageLinks(reply, query string) string {
	if reply == "" || strings.TrimSpace(query) == "" {
		return reply
	}
	q := normalizeQuery(query)

	var lines []string
	for _, l := range f.links {
		if !l.Pattern.MatchString(q) || strings.Contains(reply, l.Path) {
			continue
		}
		lines = append(lines, l.Line)
	}
	if len(lines) == 0 {
		return reply
	}
	return strings.TrimRight(reply, " \t\n") + "\n\n" + strings.Join(lines, "\n")
}
