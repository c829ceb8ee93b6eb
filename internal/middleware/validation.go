package middleware

import (
	"errors"
	"unicode/utf8"
)

// MaxMessageLength bounds a chat message in bytes.
const MaxMessageLength = 4000

// MaxAnswerLength bounds an admin answer in bytes.
const MaxAnswerLength = 20000

// ValidateChatMessage validates inbound chat text. Blank messages are left
// to the orchestrator, which answers them with a reply.
func ValidateChatMessage(message string) error {
	if len(message) > MaxMessageLength {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(message) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// MaxConversationIDLength bounds a client-supplied conversation ID.
const MaxConversationIDLength = 128

// ValidateConversationID accepts any opaque ID of ASCII letters, digits and
// "-_.:" up to MaxConversationIDLength, so server UUIDs and older "conv_..."
// IDs both pass. Empty IDs are allowed; the server assigns one.
func ValidateConversationID(id string) error {
	if len(id) > MaxConversationIDLength {
		return errors.New("conversation ID exceeds maximum length")
	}
	for i := 0; i < len(id); i++ {
		if !conversationIDByte(id[i]) {
			return errors.New("invalid conversation ID format")
		}
	}
	return nil
}

func conversationIDByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == ':':
		return true
	}
	return false
}

// ValidateAnswer validates admin-authored answer text.
func ValidateAnswer(answer string) error {
	if len(answer) == 0 {
		return errors.New("answer cannot be empty")
	}
	if len(answer) > MaxAnswerLength {
		return errors.New("answer exceeds maximum length")
	}
	if !utf8.ValidString(answer) {
		return errors.New("answer must be valid UTF-8")
	}
	return nil
}
