package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAPIBaseURL = "https://api.pexels.com/v1"
	defaultDBPath     = "prismwalls.db"
	defaultLogPath    = "prismwalls.log"
	defaultListenAddr = "127.0.0.1:8787"

	defaultPerPage     = 10
	defaultMaxPages    = 30
	defaultScreenWidth = 390
	defaultDebounce    = 400 * time.Millisecond

	maxPerPage = 80
)

// Config holds runtime settings for the app.
type Config struct {
	APIKey     string
	APIBaseURL string
	DBPath     string

	PerPage        int
	MaxPagesBrowse int
	MaxPagesSearch int
	ScreenWidth    int
	SearchDebounce time.Duration
	GalleryDir     string
	CacheDir       string
	LogPath        string
	LogLevel       slog.Level
	ListenAddr     string
	EnvFileLoaded  string
}

// LoadFromEnv reads the process environment. A .env file in the working
// directory, or the one named by PRISMWALLS_ENV_FILE, is loaded first;
// variables already set in the environment win.
func LoadFromEnv() (Config, error) {
	envFile, err := loadEnvFile()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIKey:        os.Getenv("PEXELS_API_KEY"),
		APIBaseURL:    os.Getenv("PEXELS_API_BASE_URL"),
		DBPath:        os.Getenv("PRISMWALLS_DB_PATH"),
		GalleryDir:    os.Getenv("PRISMWALLS_GALLERY_DIR"),
		CacheDir:      os.Getenv("PRISMWALLS_CACHE_DIR"),
		LogPath:       os.Getenv("PRISMWALLS_LOG_PATH"),
		ListenAddr:    os.Getenv("PRISMWALLS_LISTEN_ADDR"),
		EnvFileLoaded: envFile,
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.LogPath == "" {
		cfg.LogPath = defaultLogPath
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.GalleryDir == "" {
		cfg.GalleryDir = defaultGalleryDir()
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = defaultCacheDir()
	}

	if cfg.PerPage, err = intFromEnv("PRISMWALLS_PER_PAGE", defaultPerPage); err != nil {
		return Config{}, err
	}
	if cfg.MaxPagesBrowse, err = intFromEnv("PRISMWALLS_MAX_PAGES_BROWSE", defaultMaxPages); err != nil {
		return Config{}, err
	}
	if cfg.MaxPagesSearch, err = intFromEnv("PRISMWALLS_MAX_PAGES_SEARCH", defaultMaxPages); err != nil {
		return Config{}, err
	}
	if cfg.ScreenWidth, err = intFromEnv("PRISMWALLS_SCREEN_WIDTH", defaultScreenWidth); err != nil {
		return Config{}, err
	}
	if cfg.SearchDebounce, err = durationFromEnv("PRISMWALLS_DEBOUNCE", defaultDebounce); err != nil {
		return Config{}, err
	}
	if cfg.LogLevel, err = levelFromEnv("PRISMWALLS_LOG_LEVEL"); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("PEXELS_API_KEY is required")
	}
	if c.APIBaseURL == "" {
		return errors.New("APIBaseURL is required")
	}
	if c.DBPath == "" {
		return errors.New("DBPath is required")
	}
	if c.APIBaseURL[len(c.APIBaseURL)-1] == '/' {
		return fmt.Errorf("APIBaseURL must not end with '/': %s", c.APIBaseURL)
	}
	if c.PerPage < 1 || c.PerPage > maxPerPage {
		return fmt.Errorf("PerPage must be between 1 and %d: %d", maxPerPage, c.PerPage)
	}
	if c.MaxPagesBrowse < 1 || c.MaxPagesSearch < 1 {
		return fmt.Errorf("MaxPages must be positive: browse=%d search=%d", c.MaxPagesBrowse, c.MaxPagesSearch)
	}
	if c.ScreenWidth < 1 {
		return fmt.Errorf("ScreenWidth must be positive: %d", c.ScreenWidth)
	}
	if c.SearchDebounce < 0 {
		return fmt.Errorf("SearchDebounce must not be negative: %s", c.SearchDebounce)
	}
	return nil
}

func loadEnvFile() (string, error) {
	path := os.Getenv("PRISMWALLS_ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("load env file %s: %w", path, err)
	}
	return path, nil
}

func intFromEnv(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %q", name, raw)
	}
	return v, nil
}

func durationFromEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 400ms: %q", name, raw)
	}
	return v, nil
}

func levelFromEnv(name string) (slog.Level, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("%s must be debug, info, warn or error: %q", name, raw)
	}
	return level, nil
}

func defaultGalleryDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Pictures", "PrismWalls")
	}
	return "wallpapers"
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "prismwalls")
	}
	return filepath.Join(os.TempDir(), "prismwalls")
}
