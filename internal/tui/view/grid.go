package view

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	tuitheme "github.com/glabrego/prismwalls/internal/tui/theme"
	"github.com/glabrego/prismwalls/internal/wallpaper"
)

var reANSICodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

const swatchWidth = 4

type CardParams struct {
	Item     wallpaper.ViewModel
	Favorite bool
	Active   bool
	Width    int
}

// RenderCard draws one grid cell: color swatch, favorite marker,
// photographer and pixel size, padded to Width.
func RenderCard(p CardParams, th tuitheme.Theme) string {
	cursor := " "
	if p.Active {
		cursor = ">"
	}
	size := fmt.Sprintf("%dx%d", p.Item.Width, p.Item.Height)
	prefix := cursor + th.Swatch(p.Item.AvgColor, swatchWidth) + " " + th.FavoriteMarker(p.Favorite) + " "
	available := p.Width - visibleLen(prefix) - 1 - len(size)
	if available < 1 {
		available = 1
	}
	name := truncateRunes(strings.TrimSpace(p.Item.Photographer), available)
	gap := p.Width - visibleLen(prefix) - visibleLen(name) - len(size)
	if gap < 1 {
		gap = 1
	}
	return prefix + th.RenderCard(p.Active, name+strings.Repeat(" ", gap)+size)
}

type GridParams struct {
	Items     []wallpaper.ViewModel
	Cursor    int
	StartRow  int
	EndRow    int
	Columns   int
	Width     int
	Favorites func(id string) bool
}

// RenderGrid draws rows [StartRow, EndRow) of the card grid.
func RenderGrid(p GridParams, th tuitheme.Theme) string {
	if p.Columns <= 0 {
		p.Columns = 1
	}
	cellWidth := p.Width / p.Columns
	if cellWidth < 20 {
		cellWidth = 20
	}
	lines := make([]string, 0, p.EndRow-p.StartRow)
	for row := p.StartRow; row < p.EndRow; row++ {
		cells := make([]string, 0, p.Columns)
		for col := 0; col < p.Columns; col++ {
			i := row*p.Columns + col
			if i >= len(p.Items) {
				break
			}
			fav := p.Favorites != nil && p.Favorites(p.Items[i].ID)
			cells = append(cells, RenderCard(CardParams{Item: p.Items[i], Favorite: fav, Active: i == p.Cursor, Width: cellWidth - 1}, th))
		}
		lines = append(lines, strings.Join(cells, " "))
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return strings.Repeat(".", maxLen)
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}

func visibleLen(s string) int {
	return utf8.RuneCountInString(stripANSIText(s))
}

func stripANSIText(s string) string {
	return reANSICodes.ReplaceAllString(s, "")
}
