package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Title      lipgloss.Style
	ModePill   lipgloss.Style
	TabActive  lipgloss.Style
	TabIdle    lipgloss.Style
	ActiveCard lipgloss.Style
	Card       lipgloss.Style
	Favorite   lipgloss.Style
	MetaLabel  lipgloss.Style
	MetaValue  lipgloss.Style
	StateIdle  lipgloss.Style
	StateWarn  lipgloss.Style
	StateLoad  lipgloss.Style
	Toggle     lipgloss.Style
	ToggleOff  lipgloss.Style
}

func Default() Theme {
	cpMauve := lipgloss.Color("#cba6f7")
	cpRed := lipgloss.Color("#f38ba8")
	cpPeach := lipgloss.Color("#fab387")
	cpGreen := lipgloss.Color("#a6e3a1")
	cpTeal := lipgloss.Color("#94e2d5")
	cpLavender := lipgloss.Color("#b4befe")
	cpText := lipgloss.Color("#cdd6f4")
	cpSubtext0 := lipgloss.Color("#a6adc8")
	cpSubtext1 := lipgloss.Color("#bac2de")
	cpOverlay1 := lipgloss.Color("#7f849c")
	cpSurface0 := lipgloss.Color("#313244")

	return Theme{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(cpMauve),
		ModePill:   lipgloss.NewStyle().Foreground(cpLavender).Background(cpSurface0).Padding(0, 1),
		TabActive:  lipgloss.NewStyle().Bold(true).Foreground(cpTeal).Underline(true),
		TabIdle:    lipgloss.NewStyle().Foreground(cpSubtext0),
		ActiveCard: lipgloss.NewStyle().Background(cpSurface0).Foreground(cpText).Bold(true),
		Card:       lipgloss.NewStyle().Foreground(cpSubtext1),
		Favorite:   lipgloss.NewStyle().Foreground(cpRed),
		MetaLabel:  lipgloss.NewStyle().Foreground(cpOverlay1),
		MetaValue:  lipgloss.NewStyle().Foreground(cpSubtext1),
		StateIdle:  lipgloss.NewStyle().Foreground(cpGreen),
		StateWarn:  lipgloss.NewStyle().Foreground(cpRed),
		StateLoad:  lipgloss.NewStyle().Foreground(cpPeach),
		Toggle:     lipgloss.NewStyle().Foreground(cpGreen).Bold(true),
		ToggleOff:  lipgloss.NewStyle().Foreground(cpOverlay1),
	}
}

// Swatch paints a block in the wallpaper's average color. Malformed colors
// fall back to an unpainted block.
func (t Theme) Swatch(avgColor string, width int) string {
	if width <= 0 {
		return ""
	}
	block := strings.Repeat(" ", width)
	if !isHexColor(avgColor) {
		return t.MetaLabel.Render(strings.Repeat("░", width))
	}
	return lipgloss.NewStyle().Background(lipgloss.Color(avgColor)).Render(block)
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func (t Theme) FavoriteMarker(favorite bool) string {
	if !favorite {
		return " "
	}
	return t.Favorite.Render("♥")
}

func (t Theme) RenderCard(active bool, line string) string {
	if active {
		return t.ActiveCard.Render(line)
	}
	return t.Card.Render(line)
}

func (t Theme) RenderToggle(on bool) string {
	if on {
		return t.Toggle.Render("[on] ")
	}
	return t.ToggleOff.Render("[off]")
}
