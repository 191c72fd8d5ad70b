package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/prismwalls/internal/api"
	"github.com/glabrego/prismwalls/internal/app"
	"github.com/glabrego/prismwalls/internal/config"
	"github.com/glabrego/prismwalls/internal/feed"
	"github.com/glabrego/prismwalls/internal/logging"
	"github.com/glabrego/prismwalls/internal/pexels"
	"github.com/glabrego/prismwalls/internal/querycache"
	"github.com/glabrego/prismwalls/internal/storage"
	"github.com/glabrego/prismwalls/internal/tui"
)

const usage = `usage: prismwalls [serve | reset [favorites|preferences|recent]...]

  prismwalls         browse wallpapers in the terminal
  prismwalls serve   expose the feeds and stores over HTTP on PRISMWALLS_LISTEN_ADDR
  prismwalls reset   delete stored records (all of them when none are named)`

func main() {
	mode := "tui"
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve", "reset":
			mode = os.Args[1]
		case "-h", "--help", "help":
			fmt.Println(usage)
			return
		default:
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, logCloser, err := logging.Open(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		log.Fatalf("log file error: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	repo, err := storage.NewRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := repo.Init(ctx); err != nil {
		log.Fatalf("storage schema error: %v", err)
	}
	if err := repo.CheckWritable(ctx); err != nil {
		log.Fatalf("storage write check failed (%v). Verify PRISMWALLS_DB_PATH is writable: %s", err, cfg.DBPath)
	}

	// Reset runs before any store hydrates so nothing writes the records back.
	if mode == "reset" {
		removed, err := repo.Reset(ctx, os.Args[2:]...)
		if err != nil {
			log.Fatalf("reset failed: %v", err)
		}
		logger.Info("reset records", "removed", removed)
		if len(removed) == 0 {
			fmt.Println("nothing to reset")
		}
		for _, name := range removed {
			fmt.Println("removed", name)
		}
		return
	}

	client := pexels.NewClient(cfg.APIBaseURL, cfg.APIKey, nil)
	service := app.NewService(client, repo, app.Options{
		PerPage:        cfg.PerPage,
		MaxPagesBrowse: cfg.MaxPagesBrowse,
		MaxPagesSearch: cfg.MaxPagesSearch,
		ScreenWidth:    cfg.ScreenWidth,
		GalleryDir:     cfg.GalleryDir,
		CacheDir:       cfg.CacheDir,
		Logger:         logger,
	})
	defer func() {
		if err := service.Close(); err != nil {
			logger.Error("close service", "error", err)
		}
	}()

	if err := service.Start(ctx); err != nil {
		// Stores stay usable with defaults; the failure is only logged.
		logger.Warn("hydrate stores", "error", err)
	}
	logger.Info("starting", "mode", mode, "db", cfg.DBPath, "env_file", cfg.EnvFileLoaded)

	if mode == "serve" {
		if err := serve(cfg, service, logger); err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	model := tui.NewModel(service)
	model.SetSearchDelay(cfg.SearchDebounce)
	updates, stop := feedUpdates(service)
	defer stop()
	model.SetFeedUpdates(updates)

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		log.Fatalf("tui error: %v", err)
	}
}

// feedUpdates merges every feed controller's snapshots into one channel for
// the terminal model, latest per feed.
func feedUpdates(service *app.Service) (<-chan feed.State, func()) {
	merger := feed.NewMerger()
	for _, op := range []querycache.Operation{querycache.OpCurated, querycache.OpTrending, querycache.OpSearch, querycache.OpCategory} {
		merger.Add(service.Feed(op))
	}
	return merger.Updates(), merger.Close
}

func serve(cfg config.Config, service *app.Service, logger *slog.Logger) error {
	bridge := api.New(service, logger)
	defer bridge.Close()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           bridge,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * pexels.TimeoutLong,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
