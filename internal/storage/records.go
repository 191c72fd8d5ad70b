package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/glabrego/prismwalls/internal/favorites"
	"github.com/glabrego/prismwalls/internal/settings"
)

// The typed accessors below satisfy favorites.Repository,
// settings.Repository and recent.Repository.

func (r *Repository) LoadFavorites(ctx context.Context) ([]favorites.Entity, error) {
	var items []favorites.Entity
	if err := r.loadJSON(ctx, RecordFavorites, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) SaveFavorites(ctx context.Context, items []favorites.Entity) error {
	if items == nil {
		items = []favorites.Entity{}
	}
	return r.saveJSON(ctx, RecordFavorites, items)
}

func (r *Repository) LoadPreferences(ctx context.Context) (settings.Preferences, error) {
	raw, err := r.LoadRecord(ctx, RecordPreferences)
	if errors.Is(err, ErrNotFound) {
		return settings.Defaults(), nil
	}
	if err != nil {
		return settings.Defaults(), err
	}
	return settings.Decode(raw)
}

func (r *Repository) SavePreferences(ctx context.Context, p settings.Preferences) error {
	raw, err := settings.Encode(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	return r.SaveRecord(ctx, RecordPreferences, raw)
}

func (r *Repository) LoadRecentSearches(ctx context.Context) ([]string, error) {
	var queries []string
	if err := r.loadJSON(ctx, RecordRecentSearches, &queries); err != nil {
		return nil, err
	}
	return queries, nil
}

func (r *Repository) SaveRecentSearches(ctx context.Context, queries []string) error {
	if queries == nil {
		queries = []string{}
	}
	return r.saveJSON(ctx, RecordRecentSearches, queries)
}

// loadJSON leaves v untouched when the record does not exist.
func (r *Repository) loadJSON(ctx context.Context, name string, v any) error {
	raw, err := r.LoadRecord(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode record %s: %w", name, err)
	}
	return nil
}

func (r *Repository) saveJSON(ctx context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", name, err)
	}
	return r.SaveRecord(ctx, name, raw)
}
