package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/andybalholm/brotli"
)

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Result  any        `json:"result"`
	Success bool       `json:"success"`
	Errors  []APIError `json:"errors"`
}

type APIError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

func SuccessResponse(result any) Response {
	return Response{Result: result, Success: true, Errors: []APIError{}}
}

func ErrorResponse(code int, kind, message string) Response {
	return Response{
		Success: false,
		Errors:  []APIError{{Code: code, Kind: kind, Message: message}},
	}
}

// WriteJSON encodes resp with the given status, compressed with brotli or
// gzip when the client accepts it.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, resp any) {
	w.Header().Set("Content-Type", "application/json")
	body := brotli.HTTPCompressor(w, r)
	w.WriteHeader(status)
	if err := json.NewEncoder(body).Encode(resp); err != nil {
		slog.Warn("encode response", "path", r.URL.Path, "error", err)
	}
	if err := body.Close(); err != nil {
		slog.Warn("flush response", "path", r.URL.Path, "error", err)
	}
}
