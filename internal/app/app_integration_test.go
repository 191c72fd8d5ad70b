package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glabrego/prismwalls/internal/feed"
	"github.com/glabrego/prismwalls/internal/pexels"
	"github.com/glabrego/prismwalls/internal/querycache"
	"github.com/glabrego/prismwalls/internal/storage"
)

func TestIntegration_BrowseFavoriteAndReopen(t *testing.T) {
	if os.Getenv("PRISMWALLS_INTEGRATION") != "1" {
		t.Skip("set PRISMWALLS_INTEGRATION=1 to run integration tests")
	}

	apiKey := os.Getenv("PEXELS_API_KEY")
	if apiKey == "" {
		t.Skip("PEXELS_API_KEY is required")
	}

	baseURL := os.Getenv("PEXELS_API_BASE_URL")
	if baseURL == "" {
		baseURL = pexels.DefaultBaseURL
	}

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "prismwalls-integration.db")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	open := func() (*Service, *storage.Repository) {
		repo, err := storage.NewRepository(dbPath)
		if err != nil {
			t.Fatalf("NewRepository returned error: %v", err)
		}
		if err := repo.Init(ctx); err != nil {
			t.Fatalf("Init returned error: %v", err)
		}
		svc := NewService(pexels.NewClient(baseURL, apiKey, nil), repo, Options{
			PerPage:        10,
			MaxPagesBrowse: 30,
			MaxPagesSearch: 30,
			ScreenWidth:    390,
			GalleryDir:     filepath.Join(dir, "gallery"),
			CacheDir:       filepath.Join(dir, "cache"),
		})
		if err := svc.Start(ctx); err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
		return svc, repo
	}

	svc, repo := open()

	state, err := svc.LoadFeed(ctx, feed.Query{Operation: querycache.OpCurated})
	if err != nil {
		t.Fatalf("LoadFeed returned error: %v", err)
	}
	if len(state.Items) == 0 {
		t.Fatal("expected curated wallpapers")
	}
	if len(state.Items) > 10 {
		t.Fatalf("page size exceeded: %d", len(state.Items))
	}

	if state.HasNextPage {
		next, err := svc.NextPage(ctx, querycache.OpCurated)
		if err != nil {
			t.Fatalf("NextPage returned error: %v", err)
		}
		if len(next.Items) <= len(state.Items) {
			t.Fatalf("expected more items after next page: %d -> %d", len(state.Items), len(next.Items))
		}
	}

	first := state.Items[0]
	if !svc.ToggleFavorite(ctx, first) {
		t.Fatal("expected favorite to be added")
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	_ = repo.Close()

	reopened, repo := open()
	t.Cleanup(func() {
		_ = reopened.Close()
		_ = repo.Close()
	})
	if !reopened.Favorites().IsFavorite(first.ID) {
		t.Fatalf("favorite %s did not survive restart", first.ID)
	}
}
