// Package retrieval ranks corpus passages against a user query.
package retrieval

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/portfolio-ai/concierge/internal/model"
)

// Scoring weights.
const (
	adminBonus        = 25
	queryInTitle      = 10
	titleInQuery      = 5
	titleInQueryMin   = 8
	queryInContent    = 3
	queryInTags       = 5
	tokenInTitle      = 2
	tokenInContent    = 1
	tokenInTags       = 2
	noMatchPenalty    = 15
	defaultMinToken   = 3
	defaultMaxResults = 12
)

// Corpus supplies the passages to rank.
type Corpus interface {
	Load(ctx context.Context) []model.Passage
}

// Options configures a Retriever.
type Options struct {
	// Stopwords replaces DefaultStopwords when non-nil.
	Stopwords []string
	// MinTokenLength is the shortest query word considered meaningful.
	MinTokenLength int
}

// Retriever scores passages with weighted keyword heuristics.
type Retriever struct {
	corpus   Corpus
	stop     map[string]struct{}
	minToken int
}

// NewRetriever creates a retriever over corpus.
func NewRetriever(corpus Corpus, opts Options) *Retriever {
	words := opts.Stopwords
	if words == nil {
		words = DefaultStopwords
	}
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	minToken := opts.MinTokenLength
	if minToken <= 0 {
		minToken = defaultMinToken
	}
	return &Retriever{corpus: corpus, stop: stop, minToken: minToken}
}

type scored struct {
	passage model.Passage
	score   int
}

// Retrieve returns up to topN passages with a positive score, best first.
// A query without meaningful words returns nothing.
func (r *Retriever) Retrieve(ctx context.Context, query string, topN int) []model.Passage {
	if topN <= 0 {
		topN = defaultMaxResults
	}

	q := strings.ToLower(strings.TrimSpace(query))
	tokens := r.Tokens(q)
	if len(tokens) == 0 {
		return nil
	}

	passages := r.corpus.Load(ctx)
	if len(passages) == 0 {
		return nil
	}

	results := make([]scored, 0, len(passages))
	for _, p := range passages {
		if s := score(q, tokens, p); s > 0 {
			results = append(results, scored{passage: p, score: s})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if len(results) > topN {
		results = results[:topN]
	}
	out := make([]model.Passage, len(results))
	for i, res := range results {
		out[i] = res.passage
	}
	return out
}

// Tokens returns the distinct meaningful words of query in order.
func (r *Retriever) Tokens(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(c rune) bool {
			return !unicode.IsLetter(c) && !unicode.IsDigit(c)
		})
		if len([]rune(w)) < r.minToken {
			continue
		}
		if _, ok := r.stop[w]; ok {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		tokens = append(tokens, w)
	}
	return tokens
}

// Score exposes the ranking score of one passage for query.
func (r *Retriever) Score(query string, p model.Passage) int {
	q := strings.ToLower(strings.TrimSpace(query))
	return score(q, r.Tokens(q), p)
}

// score expects a lower-cased query and its meaningful tokens.
func score(q string, tokens []string, p model.Passage) int {
	title := strings.ToLower(p.Title)
	content := strings.ToLower(p.Content)
	tags := strings.ToLower(strings.Join(p.Tags, " "))

	s := 0
	if title != "" && strings.Contains(title, q) {
		s += queryInTitle
	}
	if title != "" && len(q) >= titleInQueryMin && strings.Contains(q, title) {
		s += titleInQuery
	}
	if strings.Contains(content, q) {
		s += queryInContent
	}
	if tags != "" && strings.Contains(tags, q) {
		s += queryInTags
	}

	matched := 0
	for _, w := range tokens {
		hit := false
		if strings.Contains(title, w) {
			s += tokenInTitle
			hit = true
		}
		if strings.Contains(content, w) {
			s += tokenInContent
			hit = true
		}
		if strings.Contains(tags, w) {
			s += tokenInTags
			hit = true
		}
		if hit {
			matched++
		}
	}

	if len(tokens) > 0 && matched == 0 {
		// The admin bonus is withheld so an unrelated curated answer cannot
		// survive the penalty.
		return s - noMatchPenalty
	}
	if p.IsAdminAnswer() {
		s += adminBonus
	}
	return s
}
