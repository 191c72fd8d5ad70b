package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glabrego/prismwalls/internal/app"
	"github.com/glabrego/prismwalls/internal/pexels"
	"github.com/glabrego/prismwalls/internal/storage"
)

// fakePexels serves total photos across /curated and /search. A non-zero
// status makes every call fail with it.
type fakePexels struct {
	total  int
	status atomic.Int32

	// A search for hold blocks until release is closed; arrived fires once
	// the request is in.
	hold    string
	arrived chan struct{}
	release chan struct{}
}

func (f *fakePexels) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if code := int(f.status.Load()); code != 0 {
		w.WriteHeader(code)
		return
	}
	if f.hold != "" && r.URL.Query().Get("query") == f.hold {
		f.arrived <- struct{}{}
		<-f.release
	}
	if strings.HasPrefix(r.URL.Path, "/photos/") {
		id, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/photos/"))
		_ = json.NewEncoder(w).Encode(photoJSON(id))
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	photos := []map[string]any{}
	for i := (page - 1) * perPage; i < page*perPage && i < f.total; i++ {
		photos = append(photos, photoJSON(i+1))
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"page":          page,
		"per_page":      perPage,
		"total_results": f.total,
		"photos":        photos,
	})
}

func photoJSON(id int) map[string]any {
	return map[string]any{
		"id":           id,
		"width":        3000,
		"height":       4500,
		"photographer": "Ana",
		"avg_color":    "#334455",
		"src": map[string]string{
			"original": fmt.Sprintf("https://img/%d/o", id),
			"large2x":  fmt.Sprintf("https://img/%d/l2", id),
			"large":    fmt.Sprintf("https://img/%d/l", id),
			"medium":   fmt.Sprintf("https://img/%d/m", id),
		},
	}
}

type envelope struct {
	Result  json.RawMessage `json:"result"`
	Success bool            `json:"success"`
	Errors  []APIError      `json:"errors"`
}

type testBridge struct {
	server   *Server
	http     *httptest.Server
	provider *fakePexels
	svc      *app.Service
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()
	provider := &fakePexels{total: 25}
	upstream := httptest.NewServer(provider)
	t.Cleanup(upstream.Close)

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Init(context.Background()))

	client := pexels.NewClient(upstream.URL, "key", upstream.Client())
	client.SetRetryPolicy(1, time.Millisecond)
	dir := t.TempDir()
	svc := app.NewService(client, repo, app.Options{
		PerPage:        10,
		MaxPagesBrowse: 30,
		MaxPagesSearch: 30,
		ScreenWidth:    390,
		GalleryDir:     filepath.Join(dir, "gallery"),
		CacheDir:       filepath.Join(dir, "cache"),
	})
	require.NoError(t, svc.Start(context.Background()))

	server := New(svc, nil)
	ts := httptest.NewServer(server)
	t.Cleanup(func() {
		ts.Close()
		server.Close()
		_ = svc.Close()
		_ = repo.Close()
	})
	return &testBridge{server: server, http: ts, provider: provider, svc: svc}
}

func (b *testBridge) do(t *testing.T, method, path string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, b.http.URL+path, reader)
	require.NoError(t, err)
	resp, err := b.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func TestHealth_AssignsRequestID(t *testing.T) {
	b := newTestBridge(t)

	resp, env := b.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	_, err := uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestGetFeed_CuratedAndNextPage(t *testing.T) {
	b := newTestBridge(t)

	resp, env := b.do(t, http.MethodGet, "/feeds/curated", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first feedResponse
	require.NoError(t, json.Unmarshal(env.Result, &first))
	assert.Len(t, first.Items, 10)
	assert.True(t, first.HasNextPage)
	assert.Equal(t, "success", first.Status)

	_, env = b.do(t, http.MethodPost, "/feeds/curated/next", nil)
	var second feedResponse
	require.NoError(t, json.Unmarshal(env.Result, &second))
	assert.Len(t, second.Items, 20)
	assert.Equal(t, 2, second.Pages)
}

func TestGetFeed_Validation(t *testing.T) {
	b := newTestBridge(t)

	resp, env := b.do(t, http.MethodGet, "/feeds/search?q=a", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)

	resp, _ = b.do(t, http.MethodGet, "/feeds/everything", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = b.do(t, http.MethodGet, "/feeds/category", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = b.do(t, http.MethodGet, "/feeds/trending?q=decade", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, env = b.do(t, http.MethodGet, "/feeds/trending?q=week", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var week feedResponse
	require.NoError(t, json.Unmarshal(env.Result, &week))
	assert.Len(t, week.Items, 10)
}

func TestGetFeed_SearchRecordsRecent(t *testing.T) {
	b := newTestBridge(t)

	resp, _ := b.do(t, http.MethodGet, "/feeds/search?q=ocean&orientation=portrait", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, env := b.do(t, http.MethodGet, "/recent-searches", nil)
	var list []string
	require.NoError(t, json.Unmarshal(env.Result, &list))
	assert.Equal(t, []string{"ocean"}, list)
}

func TestGetFeed_OverlappingSearchesNeverCrossAnswer(t *testing.T) {
	b := newTestBridge(t)
	b.provider.hold = "ocean"
	b.provider.arrived = make(chan struct{}, 1)
	b.provider.release = make(chan struct{})

	type result struct {
		status int
		env    envelope
	}
	slow := make(chan result, 1)
	go func() {
		var res result
		resp, err := b.http.Client().Get(b.http.URL + "/feeds/search?q=ocean")
		if err == nil {
			defer resp.Body.Close()
			res.status = resp.StatusCode
			_ = json.NewDecoder(resp.Body).Decode(&res.env)
		}
		slow <- res
	}()
	<-b.provider.arrived

	resp, env := b.do(t, http.MethodGet, "/feeds/search?q=mountain", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fast feedResponse
	require.NoError(t, json.Unmarshal(env.Result, &fast))
	assert.Equal(t, "mountain", fast.Query)

	close(b.provider.release)
	got := <-slow
	assert.Equal(t, http.StatusConflict, got.status)
	assert.False(t, got.env.Success)
	require.Len(t, got.env.Errors, 1)
	assert.Equal(t, "superseded", got.env.Errors[0].Kind)
}

func TestGetFeed_MapsProviderErrors(t *testing.T) {
	b := newTestBridge(t)
	b.provider.status.Store(http.StatusTooManyRequests)

	resp, env := b.do(t, http.MethodGet, "/feeds/trending", nil)

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, string(pexels.KindRateLimited), env.Errors[0].Kind)
}

func TestGetPhoto(t *testing.T) {
	b := newTestBridge(t)

	resp, env := b.do(t, http.MethodGet, "/photos/12", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Wallpaper  json.RawMessage `json:"wallpaper"`
		IsFavorite bool            `json:"is_favorite"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &body))
	assert.Contains(t, string(body.Wallpaper), `"id":"12"`)
	assert.False(t, body.IsFavorite)

	resp, _ = b.do(t, http.MethodGet, "/photos/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFavorites_ToggleListClear(t *testing.T) {
	b := newTestBridge(t)

	_, env := b.do(t, http.MethodPost, "/favorites/toggle", map[string]any{"id": "7", "photographer": "Ana"})
	assert.JSONEq(t, `{"id":"7","is_favorite":true}`, string(env.Result))

	_, env = b.do(t, http.MethodGet, "/favorites", nil)
	var list struct {
		Items []map[string]any `json:"items"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "7", list.Items[0]["id"])

	resp, _ := b.do(t, http.MethodDelete, "/favorites", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, b.svc.Favorites().Count())

	resp, _ = b.do(t, http.MethodPost, "/favorites/toggle", map[string]any{"photographer": "nobody"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = b.do(t, http.MethodPost, "/favorites/toggle", map[string]any{"id": "../../escaped"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, b.svc.Favorites().Count())
}

func TestPreferences_Patch(t *testing.T) {
	b := newTestBridge(t)

	resp, _ := b.do(t, http.MethodPatch, "/preferences", map[string]bool{"auto_download": true, "dark_mode": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, b.svc.Settings().Get().AutoDownload, "a rejected patch changes nothing")

	_, env := b.do(t, http.MethodPatch, "/preferences", map[string]bool{"auto_download": true, "high_quality": false})
	assert.JSONEq(t, `{"high_quality":false,"save_to_gallery":true,"auto_download":true,"notifications_enabled":false}`, string(env.Result))
}

func TestPreferences_ConcurrentPatchesAllApply(t *testing.T) {
	b := newTestBridge(t)
	patches := []map[string]bool{
		{"high_quality": false},
		{"save_to_gallery": false},
		{"auto_download": true},
		{"notifications_enabled": true},
	}

	var wg sync.WaitGroup
	for _, patch := range patches {
		raw, err := json.Marshal(patch)
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				req, err := http.NewRequest(http.MethodPatch, b.http.URL+"/preferences", bytes.NewReader(raw))
				if err != nil {
					t.Errorf("new request: %v", err)
					return
				}
				resp, err := b.http.Client().Do(req)
				if err != nil {
					t.Errorf("patch: %v", err)
					return
				}
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					t.Errorf("patch status %d", resp.StatusCode)
					return
				}
			}
		}()
	}
	wg.Wait()

	got := b.svc.Settings().Get()
	assert.False(t, got.HighQuality)
	assert.False(t, got.SaveToGallery)
	assert.True(t, got.AutoDownload)
	assert.True(t, got.NotificationsEnabled)
}

func TestResponses_BrotliWhenAccepted(t *testing.T) {
	b := newTestBridge(t)

	req, err := http.NewRequest(http.MethodGet, b.http.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "br")
	resp, err := b.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "br", resp.Header.Get("Content-Encoding"))
	var env envelope
	require.NoError(t, json.NewDecoder(brotli.NewReader(resp.Body)).Decode(&env))
	assert.True(t, env.Success)
}

func TestEvents_FavoriteChangesArePushed(t *testing.T) {
	b := newTestBridge(t)

	wsURL := "ws" + strings.TrimPrefix(b.http.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.server.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	b.do(t, http.MethodPost, "/favorites/toggle", map[string]any{"id": "99"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev struct {
		Type    string `json:"type"`
		Payload struct {
			Count int `json:"count"`
		} `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventFavoritesChanged, ev.Type)
	assert.Equal(t, 1, ev.Payload.Count)
}
