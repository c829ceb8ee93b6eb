package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidInput is returned for empty or malformed input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelUnavailable is returned when no generation model is configured.
	ErrModelUnavailable = errors.New("generation model unavailable")

	// ErrGenerationFailed is returned when the generation model call fails.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// RateLimitedError is returned when a client is inside its cooldown window.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// RetryAfterSeconds rounds the wait up to whole seconds, never below one.
func (e *RateLimitedError) RetryAfterSeconds() int {
	s := int(math.Ceil(e.RetryAfter.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// User-facing replies for chat failures.
const (
	ReplyModelUnavailable = "The chatbot isn't configured yet. Please check back soon."
	ReplyGenerationFailed = "Sorry, I'm having trouble connecting. Please try again."
	ReplyInvalidInput     = "Please type a message so I can help."
)

// UserReply maps a chat error to the natural-language reply shown to the
// caller.
func UserReply(err error) string {
	var rl *RateLimitedError
	switch {
	case errors.As(err, &rl):
		return fmt.Sprintf("Rate limited. Please wait %ds before sending another message.", rl.RetryAfterSeconds())
	case errors.Is(err, ErrInvalidInput):
		return ReplyInvalidInput
	case errors.Is(err, ErrModelUnavailable):
		return ReplyModelUnavailable
	default:
		return ReplyGenerationFailed
	}
}
