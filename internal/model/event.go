package model

import (
	"time"
)

// EventType represents the type of question event.
type EventType string

const (
	EventTypeQuestionLogged     EventType = "logged"
	EventTypeQuestionUnanswered EventType = "unanswered"
	EventTypeQuestionAnswered   EventType = "answered"
	EventTypeQuestionIgnored    EventType = "ignored"
)

// QuestionEvent is published to the question event stream.
type QuestionEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	ConversationID string         `json:"conversation_id,omitempty"`
	QuestionID     string         `json:"question_id,omitempty"`
	Question       string         `json:"question"`
	Reply          string         `json:"reply,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
