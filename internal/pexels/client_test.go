package pexels

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const listingBody = `{"page":2,"per_page":5,"total_results":42,"photos":[{"id":7,"width":4000,"height":6000,"photographer":"Ana","photographer_url":"https://www.pexels.com/@ana","avg_color":"#112233","src":{"original":"https://img/7/o","large2x":"https://img/7/l2","large":"https://img/7/l","medium":"https://img/7/m","small":"https://img/7/s","tiny":"https://img/7/t"}}]}`

func newTestClient(ts *httptest.Server) *Client {
	c := NewClient(ts.URL, "secret-key", ts.Client())
	c.SetRetryPolicy(1, time.Millisecond)
	return c
}

func TestCurated_SendsCredentialAndParsesResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/curated" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "secret-key" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("per_page") != "5" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(listingBody))
	}))
	defer ts.Close()

	resp, err := newTestClient(ts).Curated(context.Background(), 2, 5)
	if err != nil {
		t.Fatalf("Curated returned error: %v", err)
	}
	if resp.TotalResults != 42 || len(resp.Photos) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Photos[0].Src.Large2x != "https://img/7/l2" {
		t.Fatalf("unexpected src: %+v", resp.Photos[0].Src)
	}
}

func TestSearch_DropsEmptyFilters(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("query") != "ocean waves" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		if _, ok := q["color"]; ok {
			t.Fatalf("empty color must not be sent: %s", r.URL.RawQuery)
		}
		if _, ok := q["size"]; ok {
			t.Fatalf("empty size must not be sent: %s", r.URL.RawQuery)
		}
		if q.Get("orientation") != "portrait" {
			t.Fatalf("missing orientation: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"page":1,"per_page":10,"total_results":0,"photos":[]}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts).Search(context.Background(), SearchParams{
		Query:       "  ocean waves ",
		Page:        1,
		PerPage:     10,
		Orientation: "portrait",
		Color:       "",
	})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
}

func TestSearch_BlankQueryDoesNotHitNetwork(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	resp, err := newTestClient(ts).Search(context.Background(), SearchParams{Query: "   "})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(resp.Photos) != 0 || resp.TotalResults != 0 {
		t.Fatalf("expected empty response, got %+v", resp)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no request, got %d", calls)
	}
}

func TestRequest_ClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusBadRequest, KindBadRequest},
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindForbidden},
		{http.StatusNotFound, KindNotFound},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusInternalServerError, KindServerError},
		{http.StatusBadGateway, KindServerError},
		{http.StatusServiceUnavailable, KindUnavailable},
		{http.StatusTeapot, KindUnknown},
	}
	for _, tc := range cases {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		_, err := newTestClient(ts).Curated(context.Background(), 1, 10)
		ts.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if got := KindOf(err); got != tc.kind {
			t.Fatalf("status %d: expected kind %s, got %s (%v)", tc.status, tc.kind, got, err)
		}
	}
}

func TestRequest_RetriesTransientFailures(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(listingBody))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "k", ts.Client())
	c.SetRetryPolicy(3, time.Millisecond)

	resp, err := c.Curated(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("Curated returned error: %v", err)
	}
	if len(resp.Photos) != 1 {
		t.Fatalf("unexpected photos: %+v", resp.Photos)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestRequest_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "k", ts.Client())
	c.SetRetryPolicy(5, time.Millisecond)

	_, err := c.Curated(context.Background(), 1, 5)
	if KindOf(err) != KindRateLimited {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestRequest_TimeoutAbortsCall(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c := newTestClient(ts)
	c.SetTimeouts(30*time.Millisecond, 60*time.Millisecond)

	start := time.Now()
	_, err := c.Curated(context.Background(), 1, 5)
	if KindOf(err) != KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !Retryable(err) {
		t.Fatal("timeouts must be retryable")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("request was not aborted, took %s", elapsed)
	}
}

func TestRequest_NetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c := NewClient(url, "k", nil)
	c.SetRetryPolicy(1, time.Millisecond)
	_, err := c.Curated(context.Background(), 1, 5)
	if KindOf(err) != KindNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestRequest_MalformedResponses(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"page":1,"total_results":3}`,
		`{"page":1,"total_results":3,"photos":[{"width":10,"height":10}]}`,
	}
	for _, body := range bodies {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		_, err := newTestClient(ts).Curated(context.Background(), 1, 5)
		ts.Close()
		if KindOf(err) != KindMalformedResponse {
			t.Fatalf("body %q: expected malformed response, got %v", body, err)
		}
	}
}

func TestPhotoByID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/photos/99" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.RawQuery != "" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"id":99,"width":1000,"height":500,"photographer":"Bo","src":{"original":"https://img/99"}}`))
	}))
	defer ts.Close()

	photo, err := newTestClient(ts).PhotoByID(context.Background(), 99)
	if err != nil {
		t.Fatalf("PhotoByID returned error: %v", err)
	}
	if photo.ID != 99 || photo.Photographer != "Bo" {
		t.Fatalf("unexpected photo: %+v", photo)
	}
}

func TestPhotoByID_InvalidID(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "k", nil)
	_, err := c.PhotoByID(context.Background(), 0)
	if KindOf(err) != KindBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestError_MessageIsHumanReadable(t *testing.T) {
	err := statusError(http.StatusUnauthorized, "")
	if !strings.Contains(err.Error(), "Invalid API key") {
		t.Fatalf("unexpected message: %v", err)
	}
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("unexpected kind: %s", KindOf(err))
	}
}

func TestOpenImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Fatalf("image requests must not carry the API key")
		}
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer ts.Close()
	c := newTestClient(ts)

	body, err := c.OpenImage(context.Background(), ts.URL+"/photo.jpg")
	if err != nil {
		t.Fatalf("OpenImage returned error: %v", err)
	}
	data, err := io.ReadAll(body)
	_ = body.Close()
	if err != nil || string(data) != "jpeg-bytes" {
		t.Fatalf("unexpected body %q, err %v", data, err)
	}

	if _, err := c.OpenImage(context.Background(), ts.URL+"/missing.jpg"); KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := c.OpenImage(context.Background(), "ftp://example.com/x.jpg"); KindOf(err) != KindBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}
}
