package view

import (
	"fmt"
	"strings"

	"github.com/glabrego/prismwalls/internal/wallpaper"
)

// DetailLines is the text half of the wallpaper detail screen.
func DetailLines(vm wallpaper.ViewModel, favorite bool, width int) []string {
	title := "Photo by " + vm.Photographer
	lines := make([]string, 0, 12)
	lines = append(lines, truncateRunes(title, width))
	lines = append(lines, strings.Repeat("=", max(1, min(width, len([]rune(title))))))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("ID: %s", vm.ID))
	lines = append(lines, fmt.Sprintf("Size: %dx%d", vm.Width, vm.Height))
	lines = append(lines, "Color: "+vm.AvgColor)
	if favorite {
		lines = append(lines, "Favorite: yes")
	} else {
		lines = append(lines, "Favorite: no")
	}
	if vm.FullURL != "" {
		lines = append(lines, truncateRunes("URL: "+vm.FullURL, width))
	}
	return lines
}
