// Package recent keeps the most recently submitted search queries.
package recent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/glabrego/prismwalls/internal/persist"
)

const MaxEntries = 20

type Repository interface {
	LoadRecentSearches(ctx context.Context) ([]string, error)
	SaveRecentSearches(ctx context.Context, queries []string) error
}

type Store struct {
	repo      Repository
	writer    *persist.Writer[[]string]
	hydration persist.Hydration
	logger    *slog.Logger

	hydrateMu sync.Mutex

	mu       sync.Mutex
	queries  []string
	hydrated bool
}

func NewStore(repo Repository, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "recent")
	return &Store{
		repo:   repo,
		writer: persist.NewWriter("recent_searches", repo.SaveRecentSearches, logger),
		logger: logger,
	}
}

// Add moves q to the front. Blank queries are ignored; matching is
// case-insensitive and the newest spelling wins.
func (s *Store) Add(q string) {
	q = strings.TrimSpace(q)
	if q == "" {
		return
	}
	s.mu.Lock()
	s.queries = merge([]string{q}, s.queries)
	s.queueLocked()
	s.mu.Unlock()
	s.hydration.Retry(s.Hydrate)
}

func (s *Store) Remove(q string) {
	q = strings.TrimSpace(q)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queries[:0:0]
	for _, existing := range s.queries {
		if !strings.EqualFold(existing, q) {
			out = append(out, existing)
		}
	}
	if len(out) == len(s.queries) {
		return
	}
	s.queries = out
	s.queueLocked()
	s.hydration.Retry(s.Hydrate)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return
	}
	s.queries = nil
	s.queueLocked()
	s.hydration.Retry(s.Hydrate)
}

// List returns queries newest first.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func (s *Store) queueLocked() {
	if s.hydrated {
		s.writer.Queue(append([]string(nil), s.queries...))
	}
}

// Hydrate loads the persisted list once, behind anything added before. Until
// a load succeeds nothing is written; the next mutation retries a failed load.
func (s *Store) Hydrate(ctx context.Context) error {
	s.hydrateMu.Lock()
	defer s.hydrateMu.Unlock()

	s.mu.Lock()
	done := s.hydrated
	s.mu.Unlock()
	if done {
		return nil
	}

	loaded, err := s.repo.LoadRecentSearches(ctx)
	if err != nil {
		s.logger.Error("load recent searches", "error", err)
		s.hydration.Failed()
		return fmt.Errorf("load recent searches: %w", err)
	}

	s.mu.Lock()
	pending := len(s.queries) > 0
	s.queries = merge(s.queries, loaded)
	s.hydrated = true
	if pending {
		s.queueLocked()
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

func (s *Store) Close() error {
	s.hydration.Wait()
	return s.writer.Close()
}

// merge concatenates front and back, keeping the first spelling of each
// query and at most MaxEntries.
func merge(front, back []string) []string {
	out := make([]string, 0, min(len(front)+len(back), MaxEntries))
	seen := make(map[string]struct{}, len(front)+len(back))
	for _, list := range [][]string{front, back} {
		for _, q := range list {
			q = strings.TrimSpace(q)
			key := strings.ToLower(q)
			if q == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			if len(out) == MaxEntries {
				return out
			}
			seen[key] = struct{}{}
			out = append(out, q)
		}
	}
	return out
}
