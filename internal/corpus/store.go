// Package corpus loads, caches and extends the passage corpus file.
package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/portfolio-ai/concierge/internal/model"
	"github.com/portfolio-ai/concierge/internal/storage/jsonfile"
	"github.com/portfolio-ai/concierge/pkg/logger"
	"github.com/portfolio-ai/concierge/pkg/metrics"
)

// fileStamp identifies one version of the corpus file.
type fileStamp struct {
	modTime time.Time
	size    int64
}

// Store caches the corpus file and reloads it when the file changes.
// The slice returned by Load is shared; callers must not modify it.
type Store struct {
	path   string
	logger *logger.Logger

	mu     sync.RWMutex
	cache  []model.Passage
	stamp  fileStamp
	loaded bool

	writeMu sync.Mutex
	parses  atomic.Int64
}

// NewStore creates a store for the JSON array at path.
func NewStore(path string, log *logger.Logger) *Store {
	return &Store{path: path, logger: log}
}

// Path returns the corpus file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the current passages. An unreadable or malformed file yields
// an empty set.
func (s *Store) Load(ctx context.Context) []model.Passage {
	if ctx.Err() != nil {
		return s.cached()
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("corpus file not found", zap.String("path", s.path))
		} else {
			s.logger.Warn("failed to stat corpus file", zap.String("path", s.path), zap.Error(err))
		}
		metrics.RecordCorpusReload("error", 0)
		return []model.Passage{}
	}
	stamp := fileStamp{modTime: info.ModTime(), size: info.Size()}

	s.mu.RLock()
	if s.loaded && s.stamp == stamp {
		cache := s.cache
		s.mu.RUnlock()
		return cache
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded && s.stamp == stamp {
		return s.cache
	}

	passages, err := s.read()
	if err != nil {
		s.logger.Warn("failed to load corpus", zap.String("path", s.path), zap.Error(err))
		metrics.RecordCorpusReload("error", 0)
		return []model.Passage{}
	}

	s.cache = passages
	s.stamp = stamp
	s.loaded = true
	metrics.RecordCorpusReload("ok", len(passages))
	s.logger.Info("loaded corpus", zap.String("path", s.path), zap.Int("passages", len(passages)))
	return s.cache
}

// Invalidate forces the next Load to re-read the file.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

// Parses returns how many times the file has been parsed.
func (s *Store) Parses() int64 {
	return s.parses.Load()
}

// Append adds passages to the corpus file and invalidates the cache. The
// file is re-read rather than taken from the cache, and rewritten in full.
func (s *Store) Append(ctx context.Context, passages []model.Passage) error {
	if len(passages) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var total int
	err := jsonfile.Locked(ctx, s.path, func() error {
		var err error
		total, err = s.appendLocked(passages)
		return err
	})
	if err != nil {
		return err
	}
	s.Invalidate()

	s.logger.Info("appended passages to corpus", zap.Int("added", len(passages)), zap.Int("total", total))
	return nil
}

func (s *Store) appendLocked(passages []model.Passage) (int, error) {
	existing, err := s.read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read corpus before append: %w", err)
	}

	ids := make(map[string]struct{}, len(existing)+len(passages))
	for _, p := range existing {
		ids[p.ID] = struct{}{}
	}
	for _, p := range passages {
		if p.ID == "" {
			return 0, fmt.Errorf("passage without id: %w", model.ErrInvalidInput)
		}
		if p.Content == "" {
			return 0, fmt.Errorf("passage %s has empty content: %w", p.ID, model.ErrInvalidInput)
		}
		if _, dup := ids[p.ID]; dup {
			return 0, fmt.Errorf("passage id %s already exists: %w", p.ID, model.ErrInvalidInput)
		}
		ids[p.ID] = struct{}{}
	}

	updated := make([]model.Passage, 0, len(existing)+len(passages))
	updated = append(updated, existing...)
	updated = append(updated, passages...)

	if err := jsonfile.WriteJSONAtomic(s.path, updated); err != nil {
		return 0, fmt.Errorf("write corpus: %w", err)
	}
	return len(updated), nil
}

func (s *Store) cached() []model.Passage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache == nil {
		return []model.Passage{}
	}
	return s.cache
}

func (s *Store) read() ([]model.Passage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	s.parses.Add(1)

	var passages []model.Passage
	if err := json.Unmarshal(data, &passages); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	if passages == nil {
		passages = []model.Passage{}
	}
	return passages, nil
}
