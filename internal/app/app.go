package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/glabrego/prismwalls/internal/download"
	"github.com/glabrego/prismwalls/internal/favorites"
	"github.com/glabrego/prismwalls/internal/feed"
	"github.com/glabrego/prismwalls/internal/pexels"
	"github.com/glabrego/prismwalls/internal/querycache"
	"github.com/glabrego/prismwalls/internal/recent"
	"github.com/glabrego/prismwalls/internal/settings"
	"github.com/glabrego/prismwalls/internal/wallpaper"
)

// PexelsClient is the provider surface the app needs.
type PexelsClient interface {
	feed.Provider
	PhotoByID(ctx context.Context, id int64) (pexels.Photo, error)
	OpenImage(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Repository persists every local store.
type Repository interface {
	favorites.Repository
	settings.Repository
	recent.Repository
}

type Options struct {
	PerPage        int
	MaxPagesBrowse int
	MaxPagesSearch int
	ScreenWidth    int
	CacheCapacity  int
	GalleryDir     string
	CacheDir       string
	Logger         *slog.Logger
}

// autoDownloadTimeout bounds a download started by a favorite toggle.
const autoDownloadTimeout = 2 * pexels.TimeoutLong

type Service struct {
	client     PexelsClient
	cache      *querycache.Cache
	fetcher    feed.PexelsFetcher
	favorites  *favorites.Store
	settings   *settings.Store
	recent     *recent.Store
	downloader *download.Downloader
	opts       Options
	logger     *slog.Logger

	mu    sync.Mutex
	feeds map[querycache.Operation]*feed.Controller

	background sync.WaitGroup
}

func NewService(client PexelsClient, repo Repository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.CacheCapacity < 1 {
		opts.CacheCapacity = querycache.DefaultCapacity
	}
	logger := opts.Logger
	return &Service{
		client:    client,
		cache:     querycache.New(opts.CacheCapacity),
		fetcher:   feed.PexelsFetcher{Provider: client, ColumnWidth: wallpaper.ColumnWidth(opts.ScreenWidth)},
		favorites: favorites.NewStore(repo, logger),
		settings:  settings.NewStore(repo, logger),
		recent:    recent.NewStore(repo, logger),
		downloader: download.New(client, download.Options{
			GalleryDir: opts.GalleryDir,
			CacheDir:   opts.CacheDir,
			Logger:     logger,
		}),
		opts:   opts,
		logger: logger.With("component", "app"),
		feeds:  make(map[querycache.Operation]*feed.Controller),
	}
}

// Start hydrates every persisted store. Failures are reported together; the
// stores stay usable with whatever loaded.
func (s *Service) Start(ctx context.Context) error {
	var errs []error
	if err := s.favorites.Hydrate(ctx); err != nil {
		errs = append(errs, fmt.Errorf("hydrate favorites: %w", err))
	}
	if err := s.settings.Hydrate(ctx); err != nil {
		errs = append(errs, fmt.Errorf("hydrate preferences: %w", err))
	}
	if err := s.recent.Hydrate(ctx); err != nil {
		errs = append(errs, fmt.Errorf("hydrate recent searches: %w", err))
	}
	s.logger.Info("stores hydrated", "favorites", s.favorites.Count(), "recent_searches", len(s.recent.List()))
	return errors.Join(errs...)
}

// Feed returns the controller for op. Each source keeps its own controller so
// switching tabs never abandons another tab's feed.
func (s *Service) Feed(op querycache.Operation) *feed.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.feeds[op]; ok {
		return c
	}
	maxPages := s.opts.MaxPagesBrowse
	if op == querycache.OpSearch {
		maxPages = s.opts.MaxPagesSearch
	}
	c := feed.NewController(s.fetcher, s.cache, feed.Options{
		PerPage:  s.opts.PerPage,
		MaxPages: maxPages,
		Logger:   s.opts.Logger.With("component", "feed", "operation", string(op)),
	})
	s.feeds[op] = c
	return c
}

// LoadFeed makes q the active query of its source and returns the result.
// A concurrent load of another query on the same source wins; the caller then
// gets feed.ErrSuperseded rather than the other query's items.
func (s *Service) LoadFeed(ctx context.Context, q feed.Query) (feed.State, error) {
	c := s.Feed(q.Operation)
	if err := c.Load(ctx, q); err != nil {
		return c.Snapshot(), fmt.Errorf("load %s feed: %w", q.Operation, err)
	}
	st := c.Snapshot()
	if st.Query.Prefix() != q.Prefix() {
		return st, fmt.Errorf("load %s feed %q: %w", q.Operation, q.Text, feed.ErrSuperseded)
	}
	return st, nil
}

// Search loads a search feed and remembers the query.
func (s *Service) Search(ctx context.Context, text, orientation, color string) (feed.State, error) {
	s.recent.Add(text)
	return s.LoadFeed(ctx, feed.Query{Operation: querycache.OpSearch, Text: text, Orientation: orientation, Color: color})
}

// ClearSearch abandons the active search; in-flight responses are dropped.
func (s *Service) ClearSearch() {
	s.Feed(querycache.OpSearch).Reset()
}

func (s *Service) NextPage(ctx context.Context, op querycache.Operation) (feed.State, error) {
	c := s.Feed(op)
	if err := c.FetchNextPage(ctx); err != nil {
		return c.Snapshot(), fmt.Errorf("load next %s page: %w", op, err)
	}
	return c.Snapshot(), nil
}

func (s *Service) Refresh(ctx context.Context, op querycache.Operation) (feed.State, error) {
	c := s.Feed(op)
	if err := c.Refresh(ctx); err != nil {
		return c.Snapshot(), fmt.Errorf("refresh %s feed: %w", op, err)
	}
	return c.Snapshot(), nil
}

// PhotoByID fetches one wallpaper outside any feed.
func (s *Service) PhotoByID(ctx context.Context, id int64) (wallpaper.ViewModel, error) {
	p, err := s.client.PhotoByID(ctx, id)
	if err != nil {
		return wallpaper.ViewModel{}, fmt.Errorf("fetch photo %d: %w", id, err)
	}
	return wallpaper.ToViewModel(p, s.fetcher.ColumnWidth), nil
}

func (s *Service) Favorites() *favorites.Store { return s.favorites }

func (s *Service) Settings() *settings.Store { return s.settings }

func (s *Service) Recent() *recent.Store { return s.recent }

// ToggleFavorite flips vm's membership. With auto_download on, a newly added
// favorite is also downloaded in the background.
func (s *Service) ToggleFavorite(ctx context.Context, vm wallpaper.ViewModel) bool {
	added := s.favorites.Toggle(favorites.FromViewModel(vm))
	if !added || !s.settings.Get().AutoDownload {
		return added
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		dlCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), autoDownloadTimeout)
		defer cancel()
		if _, err := s.Download(dlCtx, vm); err != nil {
			s.logger.Warn("auto download failed", "id", vm.ID, "error", err)
		}
	}()
	return added
}

// Download saves vm using the current quality and location preferences.
func (s *Service) Download(ctx context.Context, vm wallpaper.ViewModel) (string, error) {
	start := time.Now()
	path, err := s.downloader.Download(ctx, vm, s.settings.Get())
	if err != nil {
		return "", err
	}
	s.logger.Debug("download finished", "id", vm.ID, "duration", time.Since(start))
	return path, nil
}

// OpenImage streams an image URL through the provider client, e.g. for a
// terminal preview.
func (s *Service) OpenImage(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	return s.client.OpenImage(ctx, rawURL)
}

// Close waits for background work and writes pending store changes.
func (s *Service) Close() error {
	s.background.Wait()
	s.mu.Lock()
	feeds := make([]*feed.Controller, 0, len(s.feeds))
	for _, c := range s.feeds {
		feeds = append(feeds, c)
	}
	s.mu.Unlock()
	for _, c := range feeds {
		c.Wait()
	}
	return errors.Join(s.favorites.Close(), s.settings.Close(), s.recent.Close())
}
