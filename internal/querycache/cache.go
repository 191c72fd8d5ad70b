package querycache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apibillme/cache"

	"github.com/glabrego/prismwalls/internal/wallpaper"
)

// Operation names the provider call that produced a page.
type Operation string

const (
	OpCurated  Operation = "curated"
	OpTrending Operation = "trending"
	OpSearch   Operation = "search"
	OpCategory Operation = "category"
)

// Prefix identifies a feed: every page of one (operation, query, filters).
type Prefix struct {
	Operation   Operation
	Query       string
	Orientation string
	Color       string
}

// Key identifies a single cached page.
type Key struct {
	Prefix
	Page int
}

// NewPrefix normalizes the query text and filters.
func NewPrefix(op Operation, query, orientation, color string) Prefix {
	return Prefix{
		Operation:   op,
		Query:       strings.ToLower(strings.Join(strings.Fields(query), " ")),
		Orientation: strings.ToLower(strings.TrimSpace(orientation)),
		Color:       strings.ToLower(strings.TrimSpace(color)),
	}
}

func (p Prefix) Page(n int) Key {
	return Key{Prefix: p, Page: n}
}

func (p Prefix) String() string {
	return fmt.Sprintf("%s|%q|%s|%s", p.Operation, p.Query, p.Orientation, p.Color)
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%d", k.Prefix, k.Page)
}

// Policy is the pair of lifetimes of a cached page. Within Fresh the page is
// served without refetching; within Retain it is served but may be refetched.
type Policy struct {
	Fresh  time.Duration
	Retain time.Duration
}

const DefaultFresh = time.Minute

// PolicyFor returns the default lifetimes for op. Trending content churns
// slowest and search results fastest.
func PolicyFor(op Operation) Policy {
	switch op {
	case OpTrending:
		return Policy{Fresh: DefaultFresh, Retain: 10 * time.Minute}
	case OpSearch:
		return Policy{Fresh: DefaultFresh, Retain: 2 * time.Minute}
	default:
		return Policy{Fresh: DefaultFresh, Retain: 5 * time.Minute}
	}
}

// Status is the result of a lookup.
type Status int

const (
	Miss Status = iota
	Fresh
	Stale
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "miss"
	}
}

type entry struct {
	page        wallpaper.Page
	freshUntil  time.Time
	retainUntil time.Time
}

// Cache holds pages in a capacity-bounded LRU. Capacity is the memory bound:
// the least recently used pages are evicted first.
type Cache struct {
	mu          sync.Mutex
	store       cache.Cache
	generations map[Prefix]uint64
	now         func() time.Time
}

const (
	DefaultCapacity = 512
	maxRetain       = 10 * time.Minute
)

func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Cache{
		store:       cache.New(capacity, cache.WithTTL(maxRetain)),
		generations: make(map[Prefix]uint64),
		now:         time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Cache) storeKey(k Key) string {
	return fmt.Sprintf("%d|%s", c.generations[k.Prefix], k)
}

func (c *Cache) Get(k Key) (wallpaper.Page, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.store.Get(c.storeKey(k))
	if !ok {
		return wallpaper.Page{}, Miss
	}
	e, ok := v.(*entry)
	if !ok {
		return wallpaper.Page{}, Miss
	}
	now := c.now()
	switch {
	case now.Before(e.freshUntil):
		return e.page, Fresh
	case now.Before(e.retainUntil):
		return e.page, Stale
	default:
		return wallpaper.Page{}, Miss
	}
}

func (c *Cache) Put(k Key, page wallpaper.Page, p Policy) {
	if p.Retain > maxRetain {
		p.Retain = maxRetain
	}
	if p.Fresh > p.Retain {
		p.Fresh = p.Retain
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.store.Set(c.storeKey(k), &entry{
		page:        page,
		freshUntil:  now.Add(p.Fresh),
		retainUntil: now.Add(p.Retain),
	})
}

// Invalidate drops every page cached under prefix. Pages of other prefixes
// are untouched. Dropped entries become unreachable immediately and are
// reclaimed by the LRU.
func (c *Cache) Invalidate(prefix Prefix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[prefix]++
}
