package wallpaper

import (
	"fmt"
	"math"
	"strconv"

	"github.com/glabrego/prismwalls/internal/pexels"
)

// Layout bounds for a grid card.
const (
	MinHeight = 180
	MaxHeight = 300

	FallbackWidth        = 1080
	FallbackHeight       = 1920
	FallbackAvgColor     = "#E2E8F0"
	FallbackPhotographer = "Unknown"

	horizontalPadding = 16
	cardGap           = 10
	columns           = 2
)

// ViewModel is a render-ready wallpaper. It is regenerated, never mutated.
type ViewModel struct {
	ID           string `json:"id"`
	PreviewURL   string `json:"preview_url"`
	FullURL      string `json:"full_url"`
	Photographer string `json:"photographer"`
	CardHeight   int    `json:"card_height"`
	AvgColor     string `json:"avg_color"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`

	Src pexels.Src `json:"src"`
}

// Page is one fetched batch of view models.
type Page struct {
	Index        int         `json:"index"`
	PerPage      int         `json:"per_page"`
	TotalResults int         `json:"total_results"`
	Items        []ViewModel `json:"items"`

	// End marks a page the provider had nothing for; no page follows it.
	End bool `json:"end,omitempty"`
}

// ColumnWidth is the width of one column of the two-column grid on a screen
// of the given width.
func ColumnWidth(screenWidth int) int {
	w := (screenWidth - horizontalPadding*2 - cardGap) / columns
	if w < 1 {
		return 1
	}
	return w
}

// DisplayHeight computes the card height for a photo of width x height shown
// in a column of columnWidth pixels, clamped to [MinHeight, MaxHeight].
func DisplayHeight(width, height, columnWidth int) int {
	if width <= 0 || height <= 0 {
		width, height = FallbackWidth, FallbackHeight
	}
	aspect := float64(width) / float64(height)
	raw := math.Round(float64(columnWidth) / aspect)
	return clamp(raw, MinHeight, MaxHeight)
}

func clamp(v float64, lo, hi int) int {
	if math.IsNaN(v) || v < float64(lo) {
		return lo
	}
	if v > float64(hi) {
		return hi
	}
	return int(v)
}

func ToViewModel(p pexels.Photo, columnWidth int) ViewModel {
	width, height := p.Width, p.Height
	if width <= 0 {
		width = FallbackWidth
	}
	if height <= 0 {
		height = FallbackHeight
	}
	return ViewModel{
		ID:           strconv.FormatInt(p.ID, 10),
		PreviewURL:   firstNonEmpty(p.Src.Medium, p.Src.Small),
		FullURL:      firstNonEmpty(p.Src.Large2x, p.Src.Large, p.Src.Medium),
		Photographer: firstNonEmpty(p.Photographer, FallbackPhotographer),
		CardHeight:   DisplayHeight(width, height, columnWidth),
		AvgColor:     firstNonEmpty(p.AvgColor, FallbackAvgColor),
		Width:        width,
		Height:       height,
		Src:          p.Src,
	}
}

// ToPage transforms a provider response. Items beyond perPage are dropped so
// that a page never holds more than was requested.
func ToPage(resp *pexels.Response, index, perPage, columnWidth int) Page {
	page := Page{Index: index, PerPage: perPage}
	if resp == nil {
		page.Items = []ViewModel{}
		return page
	}
	page.TotalResults = resp.TotalResults
	photos := resp.Photos
	if perPage > 0 && len(photos) > perPage {
		photos = photos[:perPage]
	}
	page.Items = make([]ViewModel, 0, len(photos))
	for _, p := range photos {
		page.Items = append(page.Items, ToViewModel(p, columnWidth))
	}
	return page
}

// ParseID checks that id is the decimal form of a positive photo id. Ids end
// up in file names, so nothing else is accepted.
func ParseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid wallpaper id %q", id)
	}
	return n, nil
}

// DownloadURL picks the file to download for the quality preference.
func DownloadURL(src pexels.Src, highQuality bool) string {
	if highQuality {
		return firstNonEmpty(src.Original, src.Large2x)
	}
	return firstNonEmpty(src.Large, src.Medium)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
