package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var managedVars = []string{
	"PEXELS_API_KEY",
	"PEXELS_API_BASE_URL",
	"PRISMWALLS_ENV_FILE",
	"PRISMWALLS_DB_PATH",
	"PRISMWALLS_PER_PAGE",
	"PRISMWALLS_MAX_PAGES_BROWSE",
	"PRISMWALLS_MAX_PAGES_SEARCH",
	"PRISMWALLS_SCREEN_WIDTH",
	"PRISMWALLS_DEBOUNCE",
	"PRISMWALLS_GALLERY_DIR",
	"PRISMWALLS_CACHE_DIR",
	"PRISMWALLS_LOG_PATH",
	"PRISMWALLS_LOG_LEVEL",
	"PRISMWALLS_LISTEN_ADDR",
}

// isolateEnv unsets every variable the loader reads and restores them when
// the test ends.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range managedVars {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoadFromEnv_UsesDefaults(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PEXELS_API_KEY", "secret")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}

	if cfg.APIBaseURL != defaultAPIBaseURL {
		t.Fatalf("unexpected API base URL: %s", cfg.APIBaseURL)
	}
	if cfg.DBPath != "prismwalls.db" {
		t.Fatalf("unexpected DB path: %s", cfg.DBPath)
	}
	if cfg.PerPage != 10 || cfg.MaxPagesBrowse != 30 || cfg.MaxPagesSearch != 30 {
		t.Fatalf("unexpected paging defaults: %+v", cfg)
	}
	if cfg.ScreenWidth != 390 {
		t.Fatalf("unexpected screen width: %d", cfg.ScreenWidth)
	}
	if cfg.SearchDebounce != 400*time.Millisecond {
		t.Fatalf("unexpected debounce: %s", cfg.SearchDebounce)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
	if cfg.ListenAddr != "127.0.0.1:8787" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.GalleryDir == "" || cfg.CacheDir == "" {
		t.Fatalf("expected default directories, got %+v", cfg)
	}
}

func TestLoadFromEnv_MissingAPIKey(t *testing.T) {
	isolateEnv(t)

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestLoadFromEnv_ParsesOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PEXELS_API_KEY", "secret")
	t.Setenv("PRISMWALLS_PER_PAGE", "20")
	t.Setenv("PRISMWALLS_MAX_PAGES_SEARCH", "5")
	t.Setenv("PRISMWALLS_DEBOUNCE", "250ms")
	t.Setenv("PRISMWALLS_LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.PerPage != 20 || cfg.MaxPagesSearch != 5 || cfg.MaxPagesBrowse != 30 {
		t.Fatalf("unexpected paging: %+v", cfg)
	}
	if cfg.SearchDebounce != 250*time.Millisecond {
		t.Fatalf("unexpected debounce: %s", cfg.SearchDebounce)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
}

func TestLoadFromEnv_RejectsMalformedNumbers(t *testing.T) {
	cases := map[string]string{
		"PRISMWALLS_PER_PAGE":  "ten",
		"PRISMWALLS_DEBOUNCE":  "soon",
		"PRISMWALLS_LOG_LEVEL": "loud",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv("PEXELS_API_KEY", "secret")
			t.Setenv(name, value)
			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", name, value)
			}
		})
	}
}

func TestLoadFromEnv_ReadsEnvFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "prismwalls.env")
	if err := os.WriteFile(path, []byte("PEXELS_API_KEY=from-file\nPRISMWALLS_DB_PATH=file.db\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("PRISMWALLS_ENV_FILE", path)
	t.Setenv("PRISMWALLS_DB_PATH", "from-env.db")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}
	if cfg.APIKey != "from-file" {
		t.Fatalf("expected key from env file, got %q", cfg.APIKey)
	}
	if cfg.DBPath != "from-env.db" {
		t.Fatalf("process environment must win over env file, got %q", cfg.DBPath)
	}
	if cfg.EnvFileLoaded != path {
		t.Fatalf("unexpected env file: %q", cfg.EnvFileLoaded)
	}
}

func TestLoadFromEnv_MissingExplicitEnvFile(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PEXELS_API_KEY", "secret")
	t.Setenv("PRISMWALLS_ENV_FILE", filepath.Join(t.TempDir(), "nope.env"))

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for missing explicit env file")
	}
}

func validConfig() Config {
	return Config{
		APIKey:         "secret",
		APIBaseURL:     "https://api.pexels.com/v1",
		DBPath:         "prismwalls.db",
		PerPage:        10,
		MaxPagesBrowse: 30,
		MaxPagesSearch: 30,
		ScreenWidth:    390,
	}
}

func TestValidate_APIBaseURLTrailingSlash(t *testing.T) {
	cfg := validConfig()
	cfg.APIBaseURL = "https://api.pexels.com/v1/"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidate_PerPageBounds(t *testing.T) {
	for _, perPage := range []int{0, 81} {
		cfg := validConfig()
		cfg.PerPage = perPage
		if err := cfg.Validate(); err == nil {
			t.Fatalf("expected validation error for per page %d", perPage)
		}
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
