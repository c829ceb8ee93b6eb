// Package ratelimit enforces a minimum interval between chat requests from
// the same client.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum interval between admitted requests.
const DefaultCooldown = 8 * time.Second

// Limiter admits at most one request per client key per cooldown window.
type Limiter struct {
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// New creates a limiter. A nil clock uses time.Now.
func New(cooldown time.Duration, now func() time.Time) *Limiter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		cooldown: cooldown,
		now:      now,
		last:     make(map[string]time.Time),
	}
}

// Cooldown returns the configured interval.
func (l *Limiter) Cooldown() time.Duration {
	return l.cooldown
}

// Admit reports whether a request from key may proceed. On rejection it
// returns the remaining wait. Admission records the request time whether or
// not the request later succeeds.
func (l *Limiter) Admit(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.last[key]; ok {
		if elapsed := now.Sub(last); elapsed < l.cooldown {
			return false, l.cooldown - elapsed
		}
	}
	l.last[key] = now
	return true, 0
}

// Sweep drops clients whose cooldown has expired and returns how many were
// removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, last := range l.last {
		if now.Sub(last) >= l.cooldown {
			delete(l.last, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.last)
}
