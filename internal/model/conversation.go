// Package model defines data structures for the portfolio concierge.
package model

// Role represents the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is an inbound chat message.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`

	// ClientKey identifies the caller for admission control. It is not
	// accepted from the request body.
	ClientKey string `json:"-"`
	// CorrelationID ties log lines to the inbound HTTP request.
	CorrelationID string `json:"-"`
}

// ChatResponse is the reply to a chat message.
type ChatResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversation_id"`
}
