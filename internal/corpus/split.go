package corpus

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/portfolio-ai/concierge/internal/model"
)

const (
	// MaxPassageLength bounds the content of passages built from free text.
	MaxPassageLength = 500

	maxDerivedTags = 10
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n+`)

// SplitAnswer breaks text into passages of at most maxLen characters,
// first by blank-line paragraphs and then by sentence for long paragraphs.
func SplitAnswer(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = MaxPassageLength
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	var out []string
	for _, para := range paragraphBreak.Split(trimmed, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if runeLen(para) <= maxLen {
			out = append(out, para)
			continue
		}

		var current string
		for _, sentence := range splitSentences(para) {
			for _, piece := range hardWrap(sentence, maxLen) {
				switch {
				case current == "":
					current = piece
				case runeLen(current)+1+runeLen(piece) <= maxLen:
					current += " " + piece
				default:
					out = append(out, current)
					current = piece
				}
			}
		}
		if current != "" {
			out = append(out, current)
		}
	}
	if len(out) == 0 {
		return []string{trimmed}
	}
	return out
}

// splitSentences cuts after '.', '!' or '?' when followed by whitespace.
func splitSentences(s string) []string {
	var out []string
	runes := []rune(s)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !strings.ContainsRune(".!?", runes[i]) {
			continue
		}
		j := i + 1
		if j >= len(runes) || !unicode.IsSpace(runes[j]) {
			continue
		}
		out = append(out, string(runes[start:j]))
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// hardWrap splits a single over-long sentence on word boundaries.
func hardWrap(s string, maxLen int) []string {
	if runeLen(s) <= maxLen {
		return []string{s}
	}
	var out []string
	var current string
	for _, word := range strings.Fields(s) {
		for runeLen(word) > maxLen {
			if current != "" {
				out = append(out, current)
				current = ""
			}
			r := []rune(word)
			out = append(out, string(r[:maxLen]))
			word = string(r[maxLen:])
		}
		switch {
		case current == "":
			current = word
		case runeLen(current)+1+runeLen(word) <= maxLen:
			current += " " + word
		default:
			out = append(out, current)
			current = word
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// DeriveTags returns up to ten distinct lower-case words longer than two
// characters from question.
func DeriveTags(question string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, strings.ToLower(question))

	seen := make(map[string]struct{})
	tags := make([]string, 0, maxDerivedTags)
	for _, w := range strings.Fields(cleaned) {
		if runeLen(w) <= 2 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		tags = append(tags, w)
		if len(tags) == maxDerivedTags {
			break
		}
	}
	return tags
}

// AdminPassages turns an administrator answer into one or more passages
// carrying the admin source so they rank ahead of generic text.
func AdminPassages(question, answer string, now time.Time) []model.Passage {
	parts := SplitAnswer(answer, MaxPassageLength)
	if len(parts) == 0 {
		return nil
	}

	question = strings.TrimSpace(question)
	tags := append(DeriveTags(question), "admin_answer", "direct_answer")
	baseID := fmt.Sprintf("chunk_admin_%d_%s", now.UnixMilli(), uuid.NewString()[:8])

	out := make([]model.Passage, len(parts))
	for i, content := range parts {
		id, title := baseID, question
		if len(parts) > 1 {
			id = fmt.Sprintf("%s_%d", baseID, i+1)
			title = fmt.Sprintf("%s (part %d)", question, i+1)
		}
		out[i] = model.Passage{
			ID:           id,
			Title:        title,
			Content:      content,
			Tags:         append([]string(nil), tags...),
			Source:       model.SourceAdminAnswer,
			Competencies: []string{},
		}
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
