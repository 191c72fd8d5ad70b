package actions

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/prismwalls/internal/feed"
	"github.com/glabrego/prismwalls/internal/querycache"
	"github.com/glabrego/prismwalls/internal/wallpaper"
)

const (
	feedTimeout     = 12 * time.Second
	downloadTimeout = 60 * time.Second
	previewTimeout  = 20 * time.Second
)

type Service interface {
	LoadFeed(ctx context.Context, q feed.Query) (feed.State, error)
	Search(ctx context.Context, text, orientation, color string) (feed.State, error)
	NextPage(ctx context.Context, op querycache.Operation) (feed.State, error)
	Refresh(ctx context.Context, op querycache.Operation) (feed.State, error)
	ToggleFavorite(ctx context.Context, vm wallpaper.ViewModel) bool
	Download(ctx context.Context, vm wallpaper.ViewModel) (string, error)
	OpenImage(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// FeedLoadedMsg carries the snapshot after a load, search, next page or
// refresh. Err is set when the call failed; State still holds whatever the
// feed kept.
type FeedLoadedMsg struct {
	Operation querycache.Operation
	State     feed.State
	Err       error
	Duration  time.Duration
	Source    string
}

// FeedChangedMsg is pushed by a feed subscription, e.g. when a background
// revalidation lands.
type FeedChangedMsg struct {
	State feed.State
}

type ToggleFavoriteMsg struct {
	ID       string
	Favorite bool
	Status   string
}

type DownloadSuccessMsg struct {
	ID     string
	Path   string
	Status string
}

type DownloadErrorMsg struct {
	ID  string
	Err error
}

type PreviewSuccessMsg struct {
	ID      string
	Preview string
}

type PreviewErrorMsg struct {
	ID  string
	Err error
}

type OpenURLSuccessMsg struct {
	Status string
	Opened bool
}

type OpenURLErrorMsg struct {
	Err error
}

func feedCmd(op querycache.Operation, source string, call func(ctx context.Context) (feed.State, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), feedTimeout)
		defer cancel()
		start := time.Now()

		st, err := call(ctx)
		return FeedLoadedMsg{Operation: op, State: st, Err: err, Duration: time.Since(start), Source: source}
	}
}

func LoadFeedCmd(service Service, q feed.Query, source string) tea.Cmd {
	return feedCmd(q.Operation, source, func(ctx context.Context) (feed.State, error) {
		return service.LoadFeed(ctx, q)
	})
}

func SearchCmd(service Service, text, orientation, color string) tea.Cmd {
	return feedCmd(querycache.OpSearch, "search", func(ctx context.Context) (feed.State, error) {
		return service.Search(ctx, text, orientation, color)
	})
}

func NextPageCmd(service Service, op querycache.Operation) tea.Cmd {
	return feedCmd(op, "next", func(ctx context.Context) (feed.State, error) {
		return service.NextPage(ctx, op)
	})
}

func RefreshCmd(service Service, op querycache.Operation) tea.Cmd {
	return feedCmd(op, "refresh", func(ctx context.Context) (feed.State, error) {
		return service.Refresh(ctx, op)
	})
}

// WaitForFeedCmd blocks on a subscription channel and turns the next
// snapshot into a message. The model re-issues it after each delivery.
func WaitForFeedCmd(updates <-chan feed.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-updates
		if !ok {
			return nil
		}
		return FeedChangedMsg{State: st}
	}
}

func ToggleFavoriteCmd(service Service, vm wallpaper.ViewModel) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), feedTimeout)
		defer cancel()

		favorite := service.ToggleFavorite(ctx, vm)
		status := "Removed from favorites"
		if favorite {
			status = "Added to favorites"
		}
		return ToggleFavoriteMsg{ID: vm.ID, Favorite: favorite, Status: status}
	}
}

func DownloadCmd(service Service, vm wallpaper.ViewModel) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), downloadTimeout)
		defer cancel()

		path, err := service.Download(ctx, vm)
		if err != nil {
			return DownloadErrorMsg{ID: vm.ID, Err: err}
		}
		return DownloadSuccessMsg{ID: vm.ID, Path: path, Status: "Saved " + path}
	}
}

func PreviewCmd(service Service, vm wallpaper.ViewModel, width int, renderFn func(io.Reader, int) (string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), previewTimeout)
		defer cancel()

		body, err := service.OpenImage(ctx, vm.PreviewURL)
		if err != nil {
			return PreviewErrorMsg{ID: vm.ID, Err: err}
		}
		defer body.Close()

		preview, err := renderFn(body, width)
		if err != nil {
			return PreviewErrorMsg{ID: vm.ID, Err: err}
		}
		return PreviewSuccessMsg{ID: vm.ID, Preview: preview}
	}
}

func OpenURLCmd(url string, openFn, copyFn func(string) error) tea.Cmd {
	return func() tea.Msg {
		if openFn != nil {
			if err := openFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "Opened wallpaper in browser", Opened: true}
			}
		}
		if copyFn != nil {
			if err := copyFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "Could not open browser, URL copied to clipboard"}
			}
		}
		return OpenURLErrorMsg{Err: fmt.Errorf("could not open URL or copy to clipboard")}
	}
}

func CopyURLCmd(url string, copyFn func(string) error) tea.Cmd {
	return func() tea.Msg {
		if copyFn != nil {
			if err := copyFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "URL copied to clipboard"}
			}
		}
		return OpenURLErrorMsg{Err: fmt.Errorf("could not copy URL to clipboard")}
	}
}
