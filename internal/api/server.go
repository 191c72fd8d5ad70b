// Package api exposes the app over a local HTTP and WebSocket bridge so an
// external UI can drive the same feeds and stores as the terminal client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/glabrego/prismwalls/internal/favorites"
	"github.com/glabrego/prismwalls/internal/feed"
	"github.com/glabrego/prismwalls/internal/querycache"
	"github.com/glabrego/prismwalls/internal/recent"
	"github.com/glabrego/prismwalls/internal/search"
	"github.com/glabrego/prismwalls/internal/settings"
	"github.com/glabrego/prismwalls/internal/wallpaper"
)

// Service is the app surface the bridge serves. *app.Service satisfies it.
type Service interface {
	LoadFeed(ctx context.Context, q feed.Query) (feed.State, error)
	Search(ctx context.Context, text, orientation, color string) (feed.State, error)
	NextPage(ctx context.Context, op querycache.Operation) (feed.State, error)
	Refresh(ctx context.Context, op querycache.Operation) (feed.State, error)
	PhotoByID(ctx context.Context, id int64) (wallpaper.ViewModel, error)
	ToggleFavorite(ctx context.Context, vm wallpaper.ViewModel) bool
	Favorites() *favorites.Store
	Settings() *settings.Store
	Recent() *recent.Store
}

const maxBodyBytes = 64 * 1024

// Server holds the bridge dependencies and HTTP router.
type Server struct {
	svc    Service
	hub    *Hub
	logger *slog.Logger
	Router chi.Router

	stop        context.CancelFunc
	unsubscribe []func()
}

// New builds the router and starts the event hub. Close releases both.
func New(svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "api")

	ctx, stop := context.WithCancel(context.Background())
	s := &Server{svc: svc, hub: NewHub(logger), logger: logger, stop: stop}
	go s.hub.Run(ctx)

	s.unsubscribe = append(s.unsubscribe,
		svc.Favorites().Subscribe(func(items []favorites.Entity) {
			s.hub.Publish(Event{Type: EventFavoritesChanged, Payload: favoritesPayload(items)})
		}),
		svc.Settings().Subscribe(func(p settings.Preferences) {
			s.hub.Publish(Event{Type: EventPreferencesChanged, Payload: p})
		}),
	)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type", RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(RequestID)
	r.Use(AccessLog(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.Health)

	r.Route("/feeds/{operation}", func(r chi.Router) {
		r.Get("/", s.GetFeed)
		r.Post("/next", s.NextPage)
	})
	r.Get("/photos/{id}", s.GetPhoto)

	r.Route("/favorites", func(r chi.Router) {
		r.Get("/", s.ListFavorites)
		r.Post("/toggle", s.ToggleFavorite)
		r.Delete("/", s.ClearFavorites)
	})
	r.Route("/preferences", func(r chi.Router) {
		r.Get("/", s.GetPreferences)
		r.Patch("/", s.PatchPreferences)
	})
	r.Route("/recent-searches", func(r chi.Router) {
		r.Get("/", s.ListRecentSearches)
		r.Delete("/", s.ClearRecentSearches)
	})
	r.Get("/events", s.hub.ServeHTTP)

	s.Router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Close detaches store subscriptions and disconnects event clients.
func (s *Server) Close() {
	for _, fn := range s.unsubscribe {
		fn()
	}
	s.stop()
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r, http.StatusOK, SuccessResponse(map[string]any{
		"status":           "ok",
		"favorites":        s.svc.Favorites().Count(),
		"events_listeners": s.hub.ClientCount(),
	}))
}

type feedResponse struct {
	Operation    querycache.Operation  `json:"operation"`
	Query        string                `json:"query,omitempty"`
	Orientation  string                `json:"orientation,omitempty"`
	Color        string                `json:"color,omitempty"`
	Status       string                `json:"status"`
	Items        []wallpaper.ViewModel `json:"items"`
	Pages        int                   `json:"pages"`
	TotalResults int                   `json:"total_results"`
	HasNextPage  bool                  `json:"has_next_page"`
	Refreshing   bool                  `json:"refreshing"`
	Error        string                `json:"error,omitempty"`
}

func toFeedResponse(st feed.State) feedResponse {
	items := st.Items
	if items == nil {
		items = []wallpaper.ViewModel{}
	}
	resp := feedResponse{
		Operation:    st.Query.Operation,
		Query:        st.Query.Text,
		Orientation:  st.Query.Orientation,
		Color:        st.Query.Color,
		Status:       st.Status.String(),
		Items:        items,
		Pages:        st.Pages,
		TotalResults: st.TotalResults,
		HasNextPage:  st.HasNextPage,
		Refreshing:   st.Refreshing,
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

func parseOperation(raw string) (querycache.Operation, bool) {
	switch op := querycache.Operation(strings.ToLower(raw)); op {
	case querycache.OpCurated, querycache.OpTrending, querycache.OpSearch, querycache.OpCategory:
		return op, true
	}
	return "", false
}

func (s *Server) GetFeed(w http.ResponseWriter, r *http.Request) {
	op, ok := parseOperation(chi.URLParam(r, "operation"))
	if !ok {
		NotFound(w, r, "unknown feed operation")
		return
	}
	query := r.URL.Query()
	text := strings.TrimSpace(query.Get("q"))
	orientation := query.Get("orientation")
	color := query.Get("color")

	requested := feed.Query{Operation: op, Text: text, Orientation: orientation, Color: color}
	var (
		st  feed.State
		err error
	)
	switch op {
	case querycache.OpSearch:
		if utf8.RuneCountInString(text) < search.MinLength {
			BadRequest(w, r, "q must be at least 2 characters")
			return
		}
		st, err = s.svc.Search(r.Context(), text, orientation, color)
	case querycache.OpTrending:
		if _, ok := feed.TrendingQuery(text); !ok {
			BadRequest(w, r, "q must be one of "+strings.Join(feed.TrendingFilters(), ", "))
			return
		}
		st, err = s.svc.LoadFeed(r.Context(), requested)
	case querycache.OpCategory:
		if text == "" {
			BadRequest(w, r, "q names the category")
			return
		}
		fallthrough
	default:
		st, err = s.svc.LoadFeed(r.Context(), requested)
	}
	if err == nil && query.Get("refresh") == "1" {
		st, err = s.svc.Refresh(r.Context(), op)
	}
	// Controllers are shared per source; never answer with another query's feed.
	if err == nil && st.Query.Prefix() != requested.Prefix() {
		err = feed.ErrSuperseded
	}
	if errors.Is(err, feed.ErrSuperseded) {
		Conflict(w, r, "another request replaced this feed query; retry")
		return
	}
	if err != nil && len(st.Items) == 0 {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, SuccessResponse(toFeedResponse(st)))
}

func (s *Server) NextPage(w http.ResponseWriter, r *http.Request) {
	op, ok := parseOperation(chi.URLParam(r, "operation"))
	if !ok {
		NotFound(w, r, "unknown feed operation")
		return
	}
	// A failed next page keeps the loaded items; the error rides in the body.
	st, _ := s.svc.NextPage(r.Context(), op)
	WriteJSON(w, r, http.StatusOK, SuccessResponse(toFeedResponse(st)))
}

func (s *Server) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(w, r, "id must be a positive integer")
		return
	}
	vm, err := s.svc.PhotoByID(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, SuccessResponse(map[string]any{
		"wallpaper":   vm,
		"is_favorite": s.svc.Favorites().IsFavorite(vm.ID),
	}))
}

func favoritesPayload(items []favorites.Entity) map[string]any {
	if items == nil {
		items = []favorites.Entity{}
	}
	return map[string]any{"items": items, "count": len(items)}
}

func (s *Server) ListFavorites(w http.ResponseWriter, r *http.Request) {
	store := s.svc.Favorites()
	payload := favoritesPayload(store.Items())
	payload["hydrated"] = store.IsHydrated()
	WriteJSON(w, r, http.StatusOK, SuccessResponse(payload))
}

func (s *Server) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var vm wallpaper.ViewModel
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&vm); err != nil {
		BadRequest(w, r, "body must be a wallpaper object")
		return
	}
	if _, err := wallpaper.ParseID(vm.ID); err != nil {
		BadRequest(w, r, "id must be a positive integer")
		return
	}
	member := s.svc.ToggleFavorite(r.Context(), vm)
	WriteJSON(w, r, http.StatusOK, SuccessResponse(map[string]any{"id": vm.ID, "is_favorite": member}))
}

func (s *Server) ClearFavorites(w http.ResponseWriter, r *http.Request) {
	s.svc.Favorites().ClearAll()
	WriteJSON(w, r, http.StatusOK, SuccessResponse(favoritesPayload(nil)))
}

func (s *Server) GetPreferences(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r, http.StatusOK, SuccessResponse(s.svc.Settings().Get()))
}

// PatchPreferences applies a partial boolean map. Unknown keys reject the
// whole patch.
func (s *Server) PatchPreferences(w http.ResponseWriter, r *http.Request) {
	var patch map[string]bool
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&patch); err != nil {
		BadRequest(w, r, "body must be an object of boolean preferences")
		return
	}
	next, err := s.svc.Settings().Patch(patch)
	if err != nil {
		BadRequest(w, r, err.Error())
		return
	}
	WriteJSON(w, r, http.StatusOK, SuccessResponse(next))
}

func (s *Server) ListRecentSearches(w http.ResponseWriter, r *http.Request) {
	list := s.svc.Recent().List()
	if list == nil {
		list = []string{}
	}
	WriteJSON(w, r, http.StatusOK, SuccessResponse(list))
}

func (s *Server) ClearRecentSearches(w http.ResponseWriter, r *http.Request) {
	s.svc.Recent().Clear()
	WriteJSON(w, r, http.StatusOK, SuccessResponse([]string{}))
}
