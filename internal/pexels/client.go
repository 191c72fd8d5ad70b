package pexels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultBaseURL = "https://api.pexels.com/v1"

	TimeoutDefault = 10 * time.Second
	TimeoutLong    = 30 * time.Second

	DefaultPerPage = 20
	MaxPerPage     = 80

	EndpointCurated = "/curated"
	EndpointSearch  = "/search"
	EndpointPhotos  = "/photos"
)

// Photo is the subset of Pexels photo fields required by the app.
type Photo struct {
	ID              int64  `json:"id"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	URL             string `json:"url"`
	Photographer    string `json:"photographer"`
	PhotographerURL string `json:"photographer_url"`
	AvgColor        string `json:"avg_color"`
	Alt             string `json:"alt"`
	Src             Src    `json:"src"`
}

// Src holds the named image-size URLs of a photo.
type Src struct {
	Original  string `json:"original"`
	Large2x   string `json:"large2x"`
	Large     string `json:"large"`
	Medium    string `json:"medium"`
	Small     string `json:"small"`
	Portrait  string `json:"portrait"`
	Landscape string `json:"landscape"`
	Tiny      string `json:"tiny"`
}

// Response is one page of a listing or search call.
type Response struct {
	Page         int     `json:"page"`
	PerPage      int     `json:"per_page"`
	TotalResults int     `json:"total_results"`
	Photos       []Photo `json:"photos"`
}

// SearchParams are the inputs of a /search call. Empty filters are omitted
// from the request.
type SearchParams struct {
	Query       string
	Page        int
	PerPage     int
	Orientation string
	Size        string
	Color       string
}

type Client struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	maxAttempts uint
	initialWait time.Duration
	timeout     time.Duration
	longTimeout time.Duration
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		http:        httpClient,
		maxAttempts: 3,
		initialWait: 500 * time.Millisecond,
		timeout:     TimeoutDefault,
		longTimeout: TimeoutLong,
	}
}

// SetTimeouts overrides the default and long request timeout classes.
func (c *Client) SetTimeouts(normal, long time.Duration) {
	if normal > 0 {
		c.timeout = normal
	}
	if long > 0 {
		c.longTimeout = long
	}
}

// SetRetryPolicy bounds automatic retries of transient failures. attempts
// counts the first call; 1 disables retrying.
func (c *Client) SetRetryPolicy(attempts int, initialWait time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	c.maxAttempts = uint(attempts)
	c.initialWait = initialWait
}

func (c *Client) Curated(ctx context.Context, page, perPage int) (*Response, error) {
	return c.listing(ctx, EndpointCurated, map[string]string{
		"page":     strconv.Itoa(normalizePage(page)),
		"per_page": strconv.Itoa(normalizePerPage(perPage)),
	})
}

func (c *Client) Search(ctx context.Context, p SearchParams) (*Response, error) {
	query := strings.TrimSpace(p.Query)
	perPage := normalizePerPage(p.PerPage)
	if query == "" {
		return &Response{Page: 1, PerPage: perPage, Photos: []Photo{}}, nil
	}
	return c.listing(ctx, EndpointSearch, map[string]string{
		"query":       query,
		"page":        strconv.Itoa(normalizePage(p.Page)),
		"per_page":    strconv.Itoa(perPage),
		"orientation": p.Orientation,
		"size":        p.Size,
		"color":       p.Color,
	})
}

// PhotoByID looks up a single photo. It runs under the long timeout class.
func (c *Client) PhotoByID(ctx context.Context, id int64) (Photo, error) {
	if id <= 0 {
		return Photo{}, &Error{Kind: KindBadRequest, Message: fmt.Sprintf("invalid photo id %d", id)}
	}
	body, err := c.do(ctx, EndpointPhotos+"/"+strconv.FormatInt(id, 10), nil, c.longTimeout)
	if err != nil {
		return Photo{}, err
	}
	return decodePhoto(body)
}

// OpenImage starts downloading an image file from rawURL under the long
// timeout class. The credential header is not sent: image URLs are public
// CDN links. The caller must close the returned body.
func (c *Client) OpenImage(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &Error{Kind: KindBadRequest, Message: fmt.Sprintf("invalid image url %q", rawURL), Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.longTimeout)
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, &Error{Kind: KindBadRequest, Message: "build request", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, classifyTransport(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, statusError(resp.StatusCode, "")
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// Request performs a GET against endpoint and decodes a listing response.
func (c *Client) Request(ctx context.Context, endpoint string, params map[string]string) (*Response, error) {
	return c.listing(ctx, endpoint, params)
}

func (c *Client) listing(ctx context.Context, endpoint string, params map[string]string) (*Response, error) {
	body, err := c.do(ctx, endpoint, params, c.timeout)
	if err != nil {
		return nil, err
	}
	return decodeListing(body)
}

func (c *Client) do(ctx context.Context, endpoint string, params map[string]string, timeout time.Duration) ([]byte, error) {
	op := func() ([]byte, error) {
		body, err := c.once(ctx, endpoint, params, timeout)
		if err != nil && !Retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return body, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialWait
	b.MaxInterval = 8 * time.Second

	body, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxAttempts))
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	return body, nil
}

func (c *Client) once(ctx context.Context, endpoint string, params map[string]string, timeout time.Duration) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := c.newRequest(callCtx, endpoint, params)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, endpoint string, params map[string]string) (*http.Request, error) {
	fullURL := c.baseURL + endpoint
	if q := encodeParams(params); q != "" {
		fullURL += "?" + q
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindBadRequest, Message: "build request", Err: err}
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// encodeParams drops empty values so that an unset filter never reaches the
// provider.
func encodeParams(params map[string]string) string {
	q := make(url.Values, len(params))
	for k, v := range params {
		if strings.TrimSpace(v) == "" {
			continue
		}
		q.Set(k, v)
	}
	return q.Encode()
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func normalizePerPage(perPage int) int {
	if perPage < 1 {
		return DefaultPerPage
	}
	if perPage > MaxPerPage {
		return MaxPerPage
	}
	return perPage
}

type rawListing struct {
	Page         int                `json:"page"`
	PerPage      int                `json:"per_page"`
	TotalResults int                `json:"total_results"`
	Photos       *[]json.RawMessage `json:"photos"`
}

func decodeListing(body []byte) (*Response, error) {
	var raw rawListing
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Message: "decode listing response", Err: err}
	}
	if raw.Photos == nil {
		return nil, malformed("listing response has no photos array")
	}
	if raw.TotalResults < 0 {
		return nil, malformed("negative total_results %d", raw.TotalResults)
	}

	out := &Response{
		Page:         raw.Page,
		PerPage:      raw.PerPage,
		TotalResults: raw.TotalResults,
		Photos:       make([]Photo, 0, len(*raw.Photos)),
	}
	for i, item := range *raw.Photos {
		photo, err := decodePhoto(item)
		if err != nil {
			var pe *Error
			if errors.As(err, &pe) {
				pe.Message = fmt.Sprintf("photo %d: %s", i, pe.Message)
			}
			return nil, err
		}
		out.Photos = append(out.Photos, photo)
	}
	return out, nil
}

func decodePhoto(body []byte) (Photo, error) {
	var photo Photo
	if err := json.Unmarshal(body, &photo); err != nil {
		return Photo{}, &Error{Kind: KindMalformedResponse, Message: "decode photo", Err: err}
	}
	if photo.ID <= 0 {
		return Photo{}, malformed("photo has no id")
	}
	return photo, nil
}
