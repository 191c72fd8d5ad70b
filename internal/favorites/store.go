// Package favorites holds the user's favorite wallpapers. The collection only
// changes through Toggle and ClearAll; it is persisted as one record in the
// background after every mutation.
package favorites

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glabrego/prismwalls/internal/persist"
	"github.com/glabrego/prismwalls/internal/wallpaper"
)

// Entity is a favorited wallpaper. AddedAt is unix milliseconds, stamped when
// the entity enters the collection.
type Entity struct {
	ID           string `json:"id"`
	PreviewURL   string `json:"previewUrl"`
	FullURL      string `json:"fullUrl"`
	Photographer string `json:"photographer"`
	AvgColor     string `json:"avgColor"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AddedAt      int64  `json:"addedAt"`
}

func FromViewModel(vm wallpaper.ViewModel) Entity {
	return Entity{
		ID:           vm.ID,
		PreviewURL:   vm.PreviewURL,
		FullURL:      vm.FullURL,
		Photographer: vm.Photographer,
		AvgColor:     vm.AvgColor,
		Width:        vm.Width,
		Height:       vm.Height,
	}
}

// ToViewModel rebuilds a grid card from a stored favorite. Provider size
// variants are not stored, so downloads fall back to FullURL.
func (e Entity) ToViewModel(columnWidth int) wallpaper.ViewModel {
	return wallpaper.ViewModel{
		ID:           e.ID,
		PreviewURL:   e.PreviewURL,
		FullURL:      e.FullURL,
		Photographer: e.Photographer,
		CardHeight:   wallpaper.DisplayHeight(e.Width, e.Height, columnWidth),
		AvgColor:     e.AvgColor,
		Width:        e.Width,
		Height:       e.Height,
	}
}

type Repository interface {
	LoadFavorites(ctx context.Context) ([]Entity, error)
	SaveFavorites(ctx context.Context, items []Entity) error
}

type Store struct {
	repo      Repository
	writer    *persist.Writer[[]Entity]
	hydration persist.Hydration
	logger    *slog.Logger
	now       func() time.Time

	hydrateMu sync.Mutex

	mu         sync.Mutex
	items      []Entity
	version    uint64
	ids        map[string]struct{}
	idsVersion uint64
	hydrated   bool
	observers  map[int]func([]Entity)
	nextObs    int
}

func NewStore(repo Repository, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "favorites")
	return &Store{
		repo:      repo,
		writer:    persist.NewWriter("favorites", repo.SaveFavorites, logger),
		logger:    logger,
		now:       time.Now,
		ids:       map[string]struct{}{},
		observers: map[int]func([]Entity){},
	}
}

// SetClock replaces the AddedAt clock. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Subscribe registers fn to receive the collection after every change.
func (s *Store) Subscribe(fn func([]Entity)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Toggle adds e when it is absent and removes it otherwise. It reports
// whether e is a favorite afterwards.
func (s *Store) Toggle(e Entity) bool {
	if e.ID == "" {
		return false
	}
	s.mu.Lock()
	var member bool
	if s.containsLocked(e.ID) {
		s.removeLocked(e.ID)
	} else {
		s.addLocked(e)
		member = true
	}
	s.publishLocked(s.hydrated)
	s.hydration.Retry(s.Hydrate)
	return member
}

func (s *Store) ClearAll() {
	s.mu.Lock()
	if len(s.items) == 0 {
		s.mu.Unlock()
		return
	}
	s.items = nil
	s.publishLocked(s.hydrated)
	s.hydration.Retry(s.Hydrate)
}

func (s *Store) addLocked(e Entity) {
	e.AddedAt = s.now().UnixMilli()
	items := make([]Entity, 0, len(s.items)+1)
	items = append(items, e)
	s.items = append(items, s.items...)
}

func (s *Store) removeLocked(id string) {
	items := make([]Entity, 0, len(s.items))
	for _, it := range s.items {
		if it.ID != id {
			items = append(items, it)
		}
	}
	s.items = items
}

// publishLocked bumps the version, optionally queues persistence and
// notifies observers. It releases s.mu.
func (s *Store) publishLocked(write bool) {
	s.version++
	snapshot := s.cloneLocked()
	if write {
		s.writer.Queue(snapshot)
	}
	observers := make([]func([]Entity), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

func (s *Store) cloneLocked() []Entity {
	return append([]Entity(nil), s.items...)
}

func (s *Store) containsLocked(id string) bool {
	if s.idsVersion != s.version {
		ids := make(map[string]struct{}, len(s.items))
		for _, it := range s.items {
			ids[it.ID] = struct{}{}
		}
		s.ids = ids
		s.idsVersion = s.version
	}
	_, ok := s.ids[id]
	return ok
}

func (s *Store) IsFavorite(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.containsLocked(id)
}

// Items returns the collection, most recently added first.
func (s *Store) Items() []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneLocked()
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) IsHydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// Hydrate loads the persisted collection once. Entities toggled before
// hydration stay in front; persisted ones follow without duplicate ids. A
// load failure leaves the store unhydrated: mutations stay in memory, are
// never written, and the next one retries the load.
func (s *Store) Hydrate(ctx context.Context) error {
	s.hydrateMu.Lock()
	defer s.hydrateMu.Unlock()
	if s.IsHydrated() {
		return nil
	}

	persisted, err := s.repo.LoadFavorites(ctx)
	if err != nil {
		s.logger.Error("load favorites", "error", err)
		s.hydration.Failed()
		return fmt.Errorf("load favorites: %w", err)
	}

	s.mu.Lock()
	pre := len(s.items)
	seen := make(map[string]struct{}, len(s.items)+len(persisted))
	merged := make([]Entity, 0, len(s.items)+len(persisted))
	for _, it := range s.items {
		seen[it.ID] = struct{}{}
		merged = append(merged, it)
	}
	for _, it := range persisted {
		if it.ID == "" {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		merged = append(merged, it)
	}
	s.items = merged
	s.hydrated = true
	s.logger.Info("favorites hydrated", "persisted", len(persisted), "pending", pre)
	// Toggles made before hydration were never written.
	s.publishLocked(pre > 0)
	return nil
}

// Flush waits until every mutation so far has been handed to the repository.
func (s *Store) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

func (s *Store) Close() error {
	s.hydration.Wait()
	return s.writer.Close()
}
