package model

import (
	"strings"
	"time"
)

// QuestionStatus is the triage state of an unanswered question.
type QuestionStatus string

const (
	StatusPending  QuestionStatus = "pending"
	StatusAnswered QuestionStatus = "answered"
	StatusIgnored  QuestionStatus = "ignored"
)

// Valid reports whether s is a known status.
func (s QuestionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAnswered, StatusIgnored:
		return true
	}
	return false
}

// QuestionLogEntry records one answered chat message.
type QuestionLogEntry struct {
	ID             string    `json:"id"`
	Question       string    `json:"question"`
	Reply          string    `json:"reply"`
	AskedAt        time.Time `json:"asked_at"`
	IsUnanswered   bool      `json:"is_unanswered"`
	SmallTalk      bool      `json:"small_talk,omitempty"`
	ConversationID string    `json:"conversation_id"`
	IP             string    `json:"ip,omitempty"`
	ChunksUsed     int       `json:"chunks_used"`
}

// UnansweredQuestion aggregates repeat occurrences of a question the
// assistant could not answer. Identity is the case-insensitive question text.
type UnansweredQuestion struct {
	ID         string         `json:"id"`
	Question   string         `json:"question"`
	ReplyGiven string         `json:"reply_given"`
	FirstAsked time.Time      `json:"first_asked"`
	LastAsked  time.Time      `json:"last_asked"`
	AskCount   int            `json:"ask_count"`
	Status     QuestionStatus `json:"status"`
	Answer     string         `json:"answer,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Occurrence describes one unanswered ask of a question.
type Occurrence struct {
	Question string
	Reply    string
	At       time.Time
	Metadata map[string]any
}

// QuestionStats summarises the question log and triage queue.
type QuestionStats struct {
	TotalQuestions int `json:"total_questions"`
	Pending        int `json:"unanswered_count"`
	Answered       int `json:"answered_count"`
	Ignored        int `json:"ignored_count"`
}

// QuestionKey normalises question text for identity comparison.
func QuestionKey(question string) string {
	return strings.ToLower(strings.TrimSpace(question))
}

// MergeMetadata copies src over dst, allocating dst when nil.
func MergeMetadata(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
