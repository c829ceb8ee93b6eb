package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/portfolio-ai/concierge/internal/llm"
	"github.com/portfolio-ai/concierge/internal/model"
	"github.com/portfolio-ai/concierge/pkg/logger"
	"github.com/portfolio-ai/concierge/pkg/metrics"
)

// Reranker defaults.
const (
	DefaultFinalBound    = 6
	DefaultShownCap      = 12
	DefaultExcerptLength = 400
	DefaultRerankTimeout = 10 * time.Second
)

var numberPattern = regexp.MustCompile(`\d+`)

// RerankOptions configures a Reranker.
type RerankOptions struct {
	FinalBound    int
	ShownCap      int
	ExcerptLength int
	Timeout       time.Duration
	Model         string
}

// Reranker asks the generation model to pick and order the most relevant
// candidates. It never fails the request; on any problem it keeps the
// lexical order.
type Reranker struct {
	client llm.Client
	logger *logger.Logger
	opts   RerankOptions
}

// NewReranker creates a reranker. A nil client always keeps lexical order.
func NewReranker(client llm.Client, log *logger.Logger, opts RerankOptions) *Reranker {
	if opts.FinalBound <= 0 {
		opts.FinalBound = DefaultFinalBound
	}
	if opts.ShownCap <= 0 {
		opts.ShownCap = DefaultShownCap
	}
	if opts.ExcerptLength <= 0 {
		opts.ExcerptLength = DefaultExcerptLength
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRerankTimeout
	}
	return &Reranker{client: client, logger: log, opts: opts}
}

// FinalBound returns the maximum number of passages Rerank returns.
func (r *Reranker) FinalBound() int {
	return r.opts.FinalBound
}

// Rerank narrows candidates to at most FinalBound passages.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []model.Passage) []model.Passage {
	if len(candidates) <= r.opts.FinalBound {
		metrics.RecordRerank("skipped")
		return candidates
	}
	if r.client == nil {
		metrics.RecordRerank("fallback")
		return r.fallback(candidates)
	}

	shown := candidates
	if len(shown) > r.opts.ShownCap {
		shown = shown[:r.opts.ShownCap]
	}

	callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	resp, err := r.client.Complete(callCtx, &llm.CompletionRequest{
		Model:       r.opts.Model,
		Messages:    []llm.ChatMessage{{Role: llm.RoleUser, Content: r.prompt(query, shown)}},
		MaxTokens:   64,
		Temperature: llm.Temperature(0),
		Operation:   "rerank",
	})
	if err != nil {
		r.logger.Warn("rerank call failed, keeping lexical order",
			zap.String("query", query),
			zap.Error(err),
		)
		metrics.RecordRerank("error")
		return r.fallback(candidates)
	}

	picked := ParseSelection(resp.Content, len(shown))
	if len(picked) == 0 {
		r.logger.Debug("rerank reply had no usable selection",
			zap.String("query", query),
			zap.String("reply", resp.Content),
		)
		metrics.RecordRerank("unparsable")
		return r.fallback(candidates)
	}

	out := make([]model.Passage, 0, r.opts.FinalBound)
	for _, n := range picked {
		out = append(out, shown[n-1])
		if len(out) == r.opts.FinalBound {
			break
		}
	}
	metrics.RecordRerank("selected")
	return out
}

func (r *Reranker) fallback(candidates []model.Passage) []model.Passage {
	if len(candidates) > r.opts.FinalBound {
		return candidates[:r.opts.FinalBound]
	}
	return candidates
}

func (r *Reranker) prompt(query string, shown []model.Passage) string {
	var sb strings.Builder
	sb.WriteString("You are a relevance filter. Given a user question and numbered passages, ")
	sb.WriteString("output ONLY the numbers of the passages that help answer the question, ")
	sb.WriteString("most relevant first, separated by commas. If none are relevant, output 0.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n\nPassages:\n", query)
	for i, p := range shown {
		fmt.Fprintf(&sb, "[%d] Title: %s\nContent: %s\n\n", i+1, p.Title, excerpt(p.Content, r.opts.ExcerptLength))
	}
	sb.WriteString("Relevant passage numbers:")
	return sb.String()
}

// ParseSelection extracts the distinct passage numbers in 1..n from reply,
// preserving their order.
func ParseSelection(reply string, n int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, m := range numberPattern.FindAllString(reply, -1) {
		v, err := strconv.Atoi(m)
		if err != nil || v < 1 || v > n {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func excerpt(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
