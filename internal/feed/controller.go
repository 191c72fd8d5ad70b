package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/glabrego/prismwalls/internal/pexels"
	"github.com/glabrego/prismwalls/internal/querycache"
	"github.com/glabrego/prismwalls/internal/wallpaper"
)

const (
	DefaultPerPage  = 10
	DefaultMaxPages = 30

	revalidateTimeout = pexels.TimeoutDefault
)

// ErrSuperseded reports that another query became active on the controller
// before this one finished, so the current state belongs to that query.
var ErrSuperseded = errors.New("feed query superseded by a newer one")

// Query selects a feed: the provider operation plus its text and filters.
type Query struct {
	Operation   querycache.Operation
	Text        string
	Orientation string
	Color       string
}

func (q Query) Prefix() querycache.Prefix {
	return querycache.NewPrefix(q.Operation, q.Text, q.Orientation, q.Color)
}

// Fetcher loads one page of a feed from the provider.
type Fetcher interface {
	FetchPage(ctx context.Context, key querycache.Key, perPage int) (wallpaper.Page, error)
}

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusLoadingMore
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusLoadingMore:
		return "loading_more"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// State is an immutable snapshot of a feed.
type State struct {
	Query        Query
	Status       Status
	Items        []wallpaper.ViewModel
	Pages        int
	TotalResults int
	HasNextPage  bool
	Refreshing   bool
	Err          error
}

func (s State) IsLoading() bool          { return s.Status == StatusLoading }
func (s State) IsFetchingNextPage() bool { return s.Status == StatusLoadingMore }
func (s State) IsError() bool            { return s.Err != nil }

type Options struct {
	PerPage  int
	MaxPages int
	// Policy returns the cache lifetimes for an operation. Defaults to
	// querycache.PolicyFor.
	Policy func(querycache.Operation) querycache.Policy
	Logger *slog.Logger
}

// Controller drives the pagination state machine of one feed surface. It
// tracks a single active query; responses that arrive for a query that is no
// longer active are dropped.
type Controller struct {
	fetcher Fetcher
	cache   *querycache.Cache
	opts    Options
	log     *slog.Logger

	mu         sync.Mutex
	epoch      uint64
	active     bool
	query      Query
	status     Status
	pages      []wallpaper.Page
	err        error
	refreshing bool

	observers  map[int]func(State)
	nextObsID  int
	revalidate singleflight.Group
	background sync.WaitGroup
}

func NewController(fetcher Fetcher, cache *querycache.Cache, opts Options) *Controller {
	if opts.PerPage < 1 {
		opts.PerPage = DefaultPerPage
	}
	if opts.PerPage > pexels.MaxPerPage {
		opts.PerPage = pexels.MaxPerPage
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Policy == nil {
		opts.Policy = querycache.PolicyFor
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		fetcher:   fetcher,
		cache:     cache,
		opts:      opts,
		log:       logger,
		observers: make(map[int]func(State)),
	}
}

// Subscribe registers fn to receive every state change. The returned func
// removes the subscription.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	st := State{
		Query:        c.query,
		Status:       c.status,
		Pages:        len(c.pages),
		HasNextPage:  c.hasMoreLocked(),
		Refreshing:   c.refreshing,
		Err:          c.err,
		TotalResults: c.totalLocked(),
	}
	size := 0
	for _, p := range c.pages {
		size += len(p.Items)
	}
	st.Items = make([]wallpaper.ViewModel, 0, size)
	for _, p := range c.pages {
		st.Items = append(st.Items, p.Items...)
	}
	return st
}

func (c *Controller) totalLocked() int {
	if len(c.pages) == 0 {
		return 0
	}
	return c.pages[len(c.pages)-1].TotalResults
}

func (c *Controller) hasMoreLocked() bool {
	if len(c.pages) > 0 && c.pages[len(c.pages)-1].End {
		return false
	}
	return hasMore(len(c.pages), c.opts.PerPage, c.opts.MaxPages, c.totalLocked())
}

// hasMore is true while both the page cap and the reported total allow
// another page. Either bound alone ends pagination.
func hasMore(fetched, perPage, maxPages, total int) bool {
	if fetched == 0 {
		return false
	}
	return fetched < maxPages && fetched*perPage < total
}

// unlockAndNotify releases c.mu and delivers the current snapshot to every
// observer outside the lock.
func (c *Controller) unlockAndNotify() {
	st := c.snapshotLocked()
	obs := make([]func(State), 0, len(c.observers))
	for _, fn := range c.observers {
		obs = append(obs, fn)
	}
	c.mu.Unlock()
	for _, fn := range obs {
		fn(st)
	}
}

// Load makes q the active feed. Pages still held by the cache are reused in
// order; only when page 1 is not cached is the provider called.
func (c *Controller) Load(ctx context.Context, q Query) error {
	prefix := q.Prefix()

	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.active = true
	c.query = q
	c.pages = nil
	c.err = nil
	c.refreshing = false

	cached, stale := c.cachedRun(prefix)
	if len(cached) > 0 {
		c.pages = cached
		c.status = StatusSuccess
		c.unlockAndNotify()
		for _, key := range stale {
			c.revalidateInBackground(ctx, key)
		}
		c.log.Debug("feed resumed from cache", "prefix", prefix.String(), "pages", len(cached))
		return nil
	}
	c.status = StatusLoading
	c.unlockAndNotify()

	page, err := c.fetch(ctx, prefix.Page(1), 0)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.log.Debug("discarding response for inactive feed", "prefix", prefix.String())
		return nil
	}
	if err != nil {
		c.status = StatusError
		c.err = err
		c.unlockAndNotify()
		c.log.Warn("feed load failed", "prefix", prefix.String(), "kind", string(pexels.KindOf(err)), "error", err)
		return err
	}
	c.cache.Put(prefix.Page(1), page, c.opts.Policy(q.Operation))
	c.pages = []wallpaper.Page{page}
	c.status = StatusSuccess
	c.unlockAndNotify()
	return nil
}

// cachedRun collects consecutive servable pages of prefix starting at page 1.
// Caller holds c.mu.
func (c *Controller) cachedRun(prefix querycache.Prefix) ([]wallpaper.Page, []querycache.Key) {
	var pages []wallpaper.Page
	var stale []querycache.Key
	for n := 1; n <= c.opts.MaxPages; n++ {
		key := prefix.Page(n)
		page, status := c.cache.Get(key)
		if status == querycache.Miss {
			break
		}
		if status == querycache.Stale {
			stale = append(stale, key)
		}
		pages = append(pages, page)
		if page.End || !hasMore(len(pages), c.opts.PerPage, c.opts.MaxPages, page.TotalResults) {
			break
		}
	}
	return pages, stale
}

// FetchNextPage loads the page after the last one held. It does nothing while
// another page is loading or once pagination has ended.
func (c *Controller) FetchNextPage(ctx context.Context) error {
	c.mu.Lock()
	if !c.active || c.status != StatusSuccess || c.refreshing || !c.hasMoreLocked() {
		c.mu.Unlock()
		return nil
	}
	epoch := c.epoch
	q := c.query
	key := q.Prefix().Page(len(c.pages) + 1)
	total := c.totalLocked()
	c.status = StatusLoadingMore
	c.err = nil

	page, status := c.cache.Get(key)
	if status != querycache.Miss {
		c.pages = append(c.pages, page)
		c.status = StatusSuccess
		c.unlockAndNotify()
		if status == querycache.Stale {
			c.revalidateInBackground(ctx, key)
		}
		return nil
	}
	c.unlockAndNotify()

	page, err := c.fetch(ctx, key, total)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.log.Debug("discarding next page for inactive feed", "key", key.String())
		return nil
	}
	c.status = StatusSuccess
	if err != nil {
		c.err = err
		c.unlockAndNotify()
		c.log.Warn("next page failed", "key", key.String(), "kind", string(pexels.KindOf(err)), "error", err)
		return err
	}
	c.cache.Put(key, page, c.opts.Policy(q.Operation))
	c.pages = append(c.pages, page)
	c.unlockAndNotify()
	return nil
}

// Refresh refetches page 1 of the active feed. On success the cached pages
// of the feed are replaced by the fresh first page; on failure the feed keeps
// what it had.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	c.epoch++
	epoch := c.epoch
	q := c.query
	prefix := q.Prefix()
	c.err = nil
	if len(c.pages) == 0 {
		c.status = StatusLoading
	} else {
		c.status = StatusSuccess
		c.refreshing = true
	}
	c.unlockAndNotify()

	page, err := c.fetch(ctx, prefix.Page(1), 0)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil
	}
	c.refreshing = false
	if err != nil {
		c.err = err
		if len(c.pages) == 0 {
			c.status = StatusError
		}
		c.unlockAndNotify()
		c.log.Warn("feed refresh failed", "prefix", prefix.String(), "error", err)
		return err
	}
	c.cache.Invalidate(prefix)
	c.cache.Put(prefix.Page(1), page, c.opts.Policy(q.Operation))
	c.pages = []wallpaper.Page{page}
	c.status = StatusSuccess
	c.unlockAndNotify()
	return nil
}

// Reset abandons the active query. Outstanding responses for it are dropped.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.epoch++
	c.active = false
	c.query = Query{}
	c.pages = nil
	c.err = nil
	c.refreshing = false
	c.status = StatusIdle
	c.unlockAndNotify()
}

// fetch loads one page. A NotFound answer becomes an empty End page that
// keeps knownTotal, the total reported by the pages before it.
func (c *Controller) fetch(ctx context.Context, key querycache.Key, knownTotal int) (wallpaper.Page, error) {
	start := time.Now()
	page, err := c.fetcher.FetchPage(ctx, key, c.opts.PerPage)
	if err != nil {
		if pexels.IsNotFound(err) {
			return wallpaper.Page{Index: key.Page, PerPage: c.opts.PerPage, TotalResults: knownTotal, Items: []wallpaper.ViewModel{}, End: true}, nil
		}
		return wallpaper.Page{}, err
	}
	if len(page.Items) > c.opts.PerPage {
		page.Items = page.Items[:c.opts.PerPage]
	}
	c.log.Debug("page fetched", "key", key.String(), "items", len(page.Items), "total", page.TotalResults, "duration", time.Since(start))
	return page, nil
}

// revalidateInBackground refetches a stale page and stores the result. It
// never touches controller state; the fresh page is picked up by the next
// Load of the feed.
func (c *Controller) revalidateInBackground(ctx context.Context, key querycache.Key) {
	op := key.Operation
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), revalidateTimeout)
		defer cancel()
		_, err, _ := c.revalidate.Do(key.String(), func() (any, error) {
			var total int
			if cached, status := c.cache.Get(key); status != querycache.Miss {
				total = cached.TotalResults
			}
			page, err := c.fetch(bg, key, total)
			if err != nil {
				return nil, err
			}
			c.cache.Put(key, page, c.opts.Policy(op))
			return nil, nil
		})
		if err != nil {
			c.log.Debug("background revalidation failed", "key", key.String(), "error", err)
		}
	}()
}

// Wait blocks until background revalidations have finished.
func (c *Controller) Wait() {
	c.background.Wait()
}
