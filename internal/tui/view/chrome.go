package view

import (
	"fmt"
	"strings"

	tuitheme "github.com/glabrego/prismwalls/internal/tui/theme"
)

// Tab is one top-level screen.
type Tab struct {
	Key   string
	Label string
}

func Toolbar(mode string) string {
	switch mode {
	case "detail":
		return "[ ] prev/next | f favorite | d download | o open | y copy | esc back | ? help"
	case "search":
		return "type to search | enter submit | ctrl+l clear | up/down recent | esc leave"
	case "settings":
		return "j/k move | space toggle | R reset | esc back | ? help"
	}
	return "h/j/k/l move | enter open | f favorite | d download | / search | n more | r refresh | tab switch | ? help"
}

func Tabs(tabs []Tab, active string, th tuitheme.Theme) string {
	parts := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		label := fmt.Sprintf("%s %s", tab.Key, tab.Label)
		if tab.Label == active {
			parts = append(parts, th.TabActive.Render(label))
			continue
		}
		parts = append(parts, th.TabIdle.Render(label))
	}
	return strings.Join(parts, "  ")
}

type FooterParams struct {
	Feed       string
	Query      string
	Pages      int
	Shown      int
	Total      int
	HasMore    bool
	Favorites  int
	Refreshing bool
}

func Footer(p FooterParams, th tuitheme.Theme) string {
	parts := []string{
		th.MetaLabel.Render("feed") + " " + th.MetaValue.Render(p.Feed),
	}
	if p.Query != "" {
		parts = append(parts, th.MetaLabel.Render("query")+" "+th.MetaValue.Render(fmt.Sprintf("%q", p.Query)))
	}
	parts = append(parts,
		th.MetaLabel.Render("pages")+" "+th.MetaValue.Render(fmt.Sprintf("%d", p.Pages)),
		th.MetaValue.Render(fmt.Sprintf("%d/%d shown", p.Shown, p.Total)),
	)
	if !p.HasMore && p.Shown > 0 {
		parts = append(parts, th.MetaValue.Render("end of feed"))
	}
	if p.Refreshing {
		parts = append(parts, th.StateLoad.Render("revalidating"))
	}
	parts = append(parts, th.Favorite.Render(fmt.Sprintf("♥ %d", p.Favorites)))
	return strings.Join(parts, " • ")
}

func Message(loading bool, hasWarning bool, status, warning string, th tuitheme.Theme) string {
	state := "idle"
	if loading {
		state = "loading"
	}
	if hasWarning {
		state = "warning"
	}
	main := "Ready"
	if status != "" {
		main = status
	} else if hasWarning {
		main = warning
	}
	stateLabel := th.StateIdle.Render("state")
	switch state {
	case "warning":
		stateLabel = th.StateWarn.Render("state")
	case "loading":
		stateLabel = th.StateLoad.Render("state")
	}
	return fmt.Sprintf("%s: %s | %s", stateLabel, state, th.MetaValue.Render(main))
}
