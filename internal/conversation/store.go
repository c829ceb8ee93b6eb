// Package conversation holds bounded per-conversation turn history in memory.
package conversation

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/portfolio-ai/concierge/internal/model"
	"github.com/portfolio-ai/concierge/pkg/metrics"
)

// Defaults for Options.
const (
	DefaultMaxTurns         = 20
	DefaultMaxConversations = 1000
	DefaultIdleTTL          = 2 * time.Hour
)

// Options configures a Store.
type Options struct {
	// MaxTurns bounds the history kept per conversation.
	MaxTurns int
	// MaxConversations bounds how many conversations are held; the least
	// recently used idle conversation is evicted first.
	MaxConversations int
	// IdleTTL expires conversations not used for this long. Zero disables.
	IdleTTL time.Duration
	Now     func() time.Time
}

type entry struct {
	id string
	// sem is a one-slot lock so waiters can give up when their ctx ends.
	sem      chan struct{}
	turns    []model.Turn
	lastUsed time.Time
	refs     int
}

func newEntry(id string, now time.Time) *entry {
	return &entry{id: id, sem: make(chan struct{}, 1), lastUsed: now, refs: 1}
}

func (e *entry) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) unlock() {
	<-e.sem
}

// Store maps conversation ids to their recent turns.
type Store struct {
	opts Options

	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.MaxConversations <= 0 {
		opts.MaxConversations = DefaultMaxConversations
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		opts:  opts,
		items: make(map[string]*list.Element),
		lru:   list.New(),
	}
}

// Do runs fn against the history of conversation id while holding that
// conversation's lock. Waiting for the lock ends with ctx.Err() when ctx is
// done first, without running fn. When fn succeeds and ctx is still live, the turns it
// returns are appended and the history is trimmed to MaxTurns. Otherwise the
// history is left untouched.
func (s *Store) Do(ctx context.Context, id string, fn func(history []model.Turn) ([]model.Turn, error)) error {
	e := s.acquire(id)
	defer s.release(e)

	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.unlock()

	history := make([]model.Turn, len(e.turns))
	copy(history, e.turns)

	add, err := fn(history)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	turns := append(e.turns, add...)
	if over := len(turns) - s.opts.MaxTurns; over > 0 {
		turns = append([]model.Turn(nil), turns[over:]...)
	}
	e.turns = turns
	return nil
}

// History returns a copy of the turns held for id.
func (s *Store) History(id string) []model.Turn {
	s.mu.Lock()
	el, ok := s.items[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	e := el.Value.(*entry)
	e.sem <- struct{}{}
	defer e.unlock()
	out := make([]model.Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

// Len returns the number of conversations held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Sweep evicts idle conversations past IdleTTL and returns the count.
func (s *Store) Sweep() int {
	if s.opts.IdleTTL <= 0 {
		return 0
	}
	now := s.opts.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for el := s.lru.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*entry)
		if e.refs == 0 && now.Sub(e.lastUsed) >= s.opts.IdleTTL {
			s.remove(el, "idle")
			removed++
		}
		el = prev
	}
	return removed
}

func (s *Store) acquire(id string) *entry {
	now := s.opts.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[id]; ok {
		e := el.Value.(*entry)
		if e.refs == 0 && s.opts.IdleTTL > 0 && now.Sub(e.lastUsed) >= s.opts.IdleTTL {
			s.remove(el, "idle")
		} else {
			e.refs++
			e.lastUsed = now
			s.lru.MoveToFront(el)
			return e
		}
	}

	for s.lru.Len() >= s.opts.MaxConversations {
		if !s.evictOldest() {
			break
		}
	}

	e := newEntry(id, now)
	s.items[id] = s.lru.PushFront(e)
	metrics.ConversationsActive.Set(float64(s.lru.Len()))
	return e
}

func (s *Store) release(e *entry) {
	s.mu.Lock()
	e.refs--
	s.mu.Unlock()
}

// evictOldest removes the least recently used conversation not in use.
func (s *Store) evictOldest() bool {
	for el := s.lru.Back(); el != nil; el = el.Prev() {
		if el.Value.(*entry).refs == 0 {
			s.remove(el, "capacity")
			return true
		}
	}
	return false
}

func (s *Store) remove(el *list.Element, reason string) {
	e := s.lru.Remove(el).(*entry)
	delete(s.items, e.id)
	metrics.ConversationsEvictedTotal.WithLabelValues(reason).Inc()
	metrics.ConversationsActive.Set(float64(s.lru.Len()))
}
