// Package download saves full-size wallpapers to disk.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glabrego/prismwalls/internal/settings"
	"github.com/glabrego/prismwalls/internal/wallpaper"
)

// Opener streams an image by URL. *pexels.Client satisfies it.
type Opener interface {
	OpenImage(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

type Options struct {
	// GalleryDir receives files when save_to_gallery is on; CacheDir
	// otherwise.
	GalleryDir string
	CacheDir   string
	Logger     *slog.Logger
	Now        func() time.Time
}

type Downloader struct {
	opener     Opener
	galleryDir string
	cacheDir   string
	logger     *slog.Logger
	now        func() time.Time
}

func New(opener Opener, opts Options) *Downloader {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Downloader{
		opener:     opener,
		galleryDir: opts.GalleryDir,
		cacheDir:   opts.CacheDir,
		logger:     opts.Logger.With("component", "download"),
		now:        opts.Now,
	}
}

// FileName is wallpaper_<id>_<hq|std>_<unix ms>.jpg.
func FileName(id string, highQuality bool, at time.Time) string {
	quality := "std"
	if highQuality {
		quality = "hq"
	}
	return fmt.Sprintf("wallpaper_%s_%s_%d.jpg", id, quality, at.UnixMilli())
}

// Dir returns the directory a download lands in under prefs.
func (d *Downloader) Dir(prefs settings.Preferences) string {
	if prefs.SaveToGallery {
		return d.galleryDir
	}
	return d.cacheDir
}

// Download fetches vm at the quality prefs ask for and returns the written
// path. The file appears only once complete.
func (d *Downloader) Download(ctx context.Context, vm wallpaper.ViewModel, prefs settings.Preferences) (string, error) {
	if _, err := wallpaper.ParseID(vm.ID); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	src := wallpaper.DownloadURL(vm.Src, prefs.HighQuality)
	if src == "" {
		src = vm.FullURL
	}
	if src == "" {
		return "", fmt.Errorf("download %s: no image url", vm.ID)
	}

	dir := d.Dir(prefs)
	if dir == "" {
		return "", errors.New("download: no target directory configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	body, err := d.opener.OpenImage(ctx, src)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", vm.ID, err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(dir, ".wallpaper-*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, body)
	if err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("download %s: write data: %w", vm.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	dst := filepath.Join(dir, FileName(vm.ID, prefs.HighQuality, d.now()))
	if filepath.Dir(dst) != filepath.Clean(dir) {
		return "", fmt.Errorf("download %s: target %s is outside %s", vm.ID, dst, dir)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", fmt.Errorf("rename temp file to %s: %w", dst, err)
	}
	tmpPath = ""

	d.logger.Info("wallpaper saved", "id", vm.ID, "path", dst, "bytes", n, "high_quality", prefs.HighQuality)
	return dst, nil
}
