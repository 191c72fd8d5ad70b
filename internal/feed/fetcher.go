package feed

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/glabrego/prismwalls/internal/pexels"
	"github.com/glabrego/prismwalls/internal/querycache"
	"github.com/glabrego/prismwalls/internal/wallpaper"
)

// Provider is the subset of the Pexels client used for feeds.
type Provider interface {
	Curated(ctx context.Context, page, perPage int) (*pexels.Response, error)
	Search(ctx context.Context, p pexels.SearchParams) (*pexels.Response, error)
}

// CategoryOrientation is applied to category and trending feeds that carry
// no explicit orientation filter.
const CategoryOrientation = "portrait"

// DefaultTrendingFilter is used when a trending query names no filter.
const DefaultTrendingFilter = "today"

var trendingQueries = map[string]string{
	"today": "trending aesthetic wallpaper",
	"week":  "popular beautiful wallpaper",
	"month": "best nature wallpaper HD",
	"all":   "amazing landscape wallpaper",
}

// TrendingFilters lists the trending filters in display order.
func TrendingFilters() []string {
	return []string{"today", "week", "month", "all"}
}

// TrendingQuery expands a trending filter into its provider search text. An
// empty filter selects DefaultTrendingFilter.
func TrendingQuery(filter string) (string, bool) {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		filter = DefaultTrendingFilter
	}
	q, ok := trendingQueries[filter]
	return q, ok
}

var categoryQueries = map[string]string{
	"nature":   "nature landscape",
	"abstract": "abstract art pattern",
	"animals":  "wildlife animals",
	"space":    "space galaxy stars",
	"anime":    "anime art illustration",
	"cars":     "sports cars luxury",
	"music":    "music concert instruments",
	"games":    "gaming esports",
	"minimal":  "minimal simple clean",
	"dark":     "dark moody black",
	"colorful": "colorful vibrant bright",
	"city":     "city urban skyline",
}

// Categories lists the known category names in display order.
func Categories() []string {
	names := make([]string, 0, len(categoryQueries))
	for name := range categoryQueries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CategoryQuery expands a category name into its provider search text.
// Unknown categories are searched for verbatim.
func CategoryQuery(category string) string {
	if q, ok := categoryQueries[strings.ToLower(strings.TrimSpace(category))]; ok {
		return q
	}
	return strings.TrimSpace(category)
}

// PexelsFetcher maps feed operations onto provider endpoints and transforms
// the results for a fixed column width.
type PexelsFetcher struct {
	Provider    Provider
	ColumnWidth int
}

func (f PexelsFetcher) FetchPage(ctx context.Context, key querycache.Key, perPage int) (wallpaper.Page, error) {
	var (
		resp *pexels.Response
		err  error
	)
	switch key.Operation {
	case querycache.OpCurated:
		resp, err = f.Provider.Curated(ctx, key.Page, perPage)
	case querycache.OpTrending:
		text, ok := TrendingQuery(key.Query)
		if !ok {
			return wallpaper.Page{}, fmt.Errorf("unknown trending filter %q", key.Query)
		}
		resp, err = f.Provider.Search(ctx, pexels.SearchParams{
			Query:       text,
			Page:        key.Page,
			PerPage:     perPage,
			Orientation: orientationOr(key.Orientation),
			Color:       key.Color,
		})
	case querycache.OpSearch:
		resp, err = f.Provider.Search(ctx, pexels.SearchParams{
			Query:       key.Query,
			Page:        key.Page,
			PerPage:     perPage,
			Orientation: key.Orientation,
			Color:       key.Color,
		})
	case querycache.OpCategory:
		resp, err = f.Provider.Search(ctx, pexels.SearchParams{
			Query:       CategoryQuery(key.Query),
			Page:        key.Page,
			PerPage:     perPage,
			Orientation: orientationOr(key.Orientation),
			Color:       key.Color,
		})
	default:
		return wallpaper.Page{}, fmt.Errorf("unknown feed operation %q", key.Operation)
	}
	if err != nil {
		return wallpaper.Page{}, err
	}
	return wallpaper.ToPage(resp, key.Page, perPage, f.ColumnWidth), nil
}

func orientationOr(orientation string) string {
	if orientation == "" {
		return CategoryOrientation
	}
	return orientation
}
