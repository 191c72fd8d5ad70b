// Package settings stores the user's flat boolean preferences.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/glabrego/prismwalls/internal/persist"
)

const (
	KeyHighQuality          = "high_quality"
	KeySaveToGallery        = "save_to_gallery"
	KeyAutoDownload         = "auto_download"
	KeyNotificationsEnabled = "notifications_enabled"
)

// Keys lists every recognized preference in display order.
func Keys() []string {
	return []string{KeyHighQuality, KeySaveToGallery, KeyAutoDownload, KeyNotificationsEnabled}
}

type Preferences struct {
	HighQuality          bool `json:"high_quality"`
	SaveToGallery        bool `json:"save_to_gallery"`
	AutoDownload         bool `json:"auto_download"`
	NotificationsEnabled bool `json:"notifications_enabled"`
}

func Defaults() Preferences {
	return Preferences{HighQuality: true, SaveToGallery: true}
}

func (p *Preferences) field(key string) *bool {
	switch key {
	case KeyHighQuality:
		return &p.HighQuality
	case KeySaveToGallery:
		return &p.SaveToGallery
	case KeyAutoDownload:
		return &p.AutoDownload
	case KeyNotificationsEnabled:
		return &p.NotificationsEnabled
	}
	return nil
}

// Value returns the preference stored under key.
func (p Preferences) Value(key string) (bool, bool) {
	f := p.field(key)
	if f == nil {
		return false, false
	}
	return *f, true
}

// With returns a copy of p with key set to value.
func (p Preferences) With(key string, value bool) (Preferences, error) {
	f := p.field(key)
	if f == nil {
		return p, fmt.Errorf("unknown preference %q", key)
	}
	*f = value
	return p, nil
}

// Decode reads a persisted preference map. Missing, unknown or non-boolean
// keys leave the default in place, so a record written by an older or newer
// build never resets the others.
func Decode(raw []byte) (Preferences, error) {
	p := Defaults()
	if len(raw) == 0 {
		return p, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return p, fmt.Errorf("decode preferences: %w", err)
	}
	for _, key := range Keys() {
		v, ok := m[key]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			continue
		}
		*p.field(key) = b
	}
	return p, nil
}

// Encode writes only recognized keys.
func Encode(p Preferences) ([]byte, error) {
	m := make(map[string]bool, len(Keys()))
	for _, key := range Keys() {
		m[key], _ = p.Value(key)
	}
	return json.Marshal(m)
}

type Repository interface {
	LoadPreferences(ctx context.Context) (Preferences, error)
	SavePreferences(ctx context.Context, p Preferences) error
}

type Store struct {
	repo      Repository
	writer    *persist.Writer[Preferences]
	hydration persist.Hydration
	logger    *slog.Logger

	hydrateMu sync.Mutex

	mu        sync.Mutex
	prefs     Preferences
	touched   map[string]bool
	hydrated  bool
	observers map[int]func(Preferences)
	nextObs   int
}

func NewStore(repo Repository, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "settings")
	return &Store{
		repo:      repo,
		writer:    persist.NewWriter("preferences", repo.SavePreferences, logger),
		logger:    logger,
		prefs:     Defaults(),
		touched:   map[string]bool{},
		observers: map[int]func(Preferences){},
	}
}

func (s *Store) Get() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

func (s *Store) Set(key string, value bool) error {
	s.mu.Lock()
	next, err := s.prefs.With(key, value)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.prefs = next
	s.touched[key] = true
	s.publishLocked(s.hydrated)
	s.hydration.Retry(s.Hydrate)
	return nil
}

// Patch applies every key of patch in one step and returns the result. An
// unknown key rejects the whole patch and nothing changes.
func (s *Store) Patch(patch map[string]bool) (Preferences, error) {
	keys := make([]string, 0, len(patch))
	for key := range patch {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	s.mu.Lock()
	next := s.prefs
	for _, key := range keys {
		var err error
		if next, err = next.With(key, patch[key]); err != nil {
			p := s.prefs
			s.mu.Unlock()
			return p, err
		}
	}
	if len(keys) == 0 {
		s.mu.Unlock()
		return next, nil
	}
	s.prefs = next
	for _, key := range keys {
		s.touched[key] = true
	}
	s.publishLocked(s.hydrated)
	s.hydration.Retry(s.Hydrate)
	return next, nil
}

// Update replaces every preference at once.
func (s *Store) Update(p Preferences) {
	s.mu.Lock()
	s.prefs = p
	for _, key := range Keys() {
		s.touched[key] = true
	}
	s.publishLocked(s.hydrated)
	s.hydration.Retry(s.Hydrate)
}

func (s *Store) Reset() {
	s.Update(Defaults())
}

func (s *Store) IsHydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

func (s *Store) Subscribe(fn func(Preferences)) func() {
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

// publishLocked optionally queues persistence and notifies observers. It
// releases s.mu.
func (s *Store) publishLocked(write bool) {
	p := s.prefs
	if write {
		s.writer.Queue(p)
	}
	observers := make([]func(Preferences), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()
	for _, fn := range observers {
		fn(p)
	}
}

// Hydrate loads persisted preferences once. Keys set before hydration keep
// their in-memory value. After a failed load the defaults stay in effect but
// nothing is written; the next change retries the load.
func (s *Store) Hydrate(ctx context.Context) error {
	s.hydrateMu.Lock()
	defer s.hydrateMu.Unlock()
	if s.IsHydrated() {
		return nil
	}

	loaded, err := s.repo.LoadPreferences(ctx)
	if err != nil {
		s.logger.Error("load preferences", "error", err)
		s.hydration.Failed()
		return fmt.Errorf("load preferences: %w", err)
	}

	s.mu.Lock()
	for _, key := range Keys() {
		if s.touched[key] {
			continue
		}
		v, _ := loaded.Value(key)
		*s.prefs.field(key) = v
	}
	dirty := len(s.touched) > 0
	s.hydrated = true
	s.publishLocked(dirty)
	return nil
}

func (s *Store) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

func (s *Store) Close() error {
	s.hydration.Wait()
	return s.writer.Close()
}
