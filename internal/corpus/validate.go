package corpus

import (
	"fmt"
	"math"
	"strings"

	"github.com/portfolio-ai/concierge/internal/model"
)

// Validation thresholds.
const (
	MinContentLength    = 10
	MaxContentLength    = 2000
	DuplicateSimilarity = 0.8
	DuplicateQuestion   = 0.7
)

// Duplicate reports a passage whose content closely matches an earlier one.
type Duplicate struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	OtherID    string `json:"other_id"`
	Similarity int    `json:"similarity"`
}

// ValidationReport is the outcome of Validate.
type ValidationReport struct {
	Valid      bool        `json:"valid"`
	Errors     []string    `json:"errors"`
	Warnings   []string    `json:"warnings"`
	Duplicates []Duplicate `json:"duplicates"`
}

// Validate checks passages for duplicate ids, missing fields, suspicious
// content lengths and near-duplicate content.
func Validate(passages []model.Passage) ValidationReport {
	report := ValidationReport{
		Valid:      true,
		Errors:     []string{},
		Warnings:   []string{},
		Duplicates: []Duplicate{},
	}

	seen := make(map[string]struct{}, len(passages))
	for i, p := range passages {
		if _, dup := seen[p.ID]; dup && p.ID != "" {
			report.Errors = append(report.Errors, fmt.Sprintf("duplicate id: %s", p.ID))
			report.Valid = false
		}
		seen[p.ID] = struct{}{}

		if p.ID == "" || p.Title == "" || p.Content == "" {
			name := p.ID
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			report.Errors = append(report.Errors, fmt.Sprintf("passage missing required fields: %s", name))
			report.Valid = false
		}

		n := runeLen(p.Content)
		if n < MinContentLength {
			report.Warnings = append(report.Warnings, fmt.Sprintf("passage %q has very short content (%d chars)", p.Title, n))
		}
		if n > MaxContentLength {
			report.Warnings = append(report.Warnings, fmt.Sprintf("passage %q has very long content (%d chars)", p.Title, n))
		}

		for _, other := range passages[:i] {
			if other.ID == p.ID {
				continue
			}
			sim := Similarity(p.Content, other.Content)
			if sim <= DuplicateSimilarity {
				continue
			}
			pct := int(math.Round(sim * 100))
			report.Duplicates = append(report.Duplicates, Duplicate{ID: p.ID, Title: p.Title, OtherID: other.ID, Similarity: pct})
			report.Warnings = append(report.Warnings, fmt.Sprintf("passage %q is very similar (%d%%) to %q", p.Title, pct, other.Title))
		}
	}

	return report
}

// SimilarTitle returns the first passage whose title overlaps question by at
// least DuplicateQuestion.
func SimilarTitle(passages []model.Passage, question string) (model.Passage, bool) {
	for _, p := range passages {
		if Similarity(question, p.Title) >= DuplicateQuestion {
			return p, true
		}
	}
	return model.Passage{}, false
}

// Similarity is the Jaccard overlap of the lower-cased word sets of a and b.
func Similarity(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 && len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = struct{}{}
	}
	return out
}
