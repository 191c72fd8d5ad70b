package pexels

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failed provider call. Callers branch on Kind, never on
// raw HTTP status codes.
type Kind string

const (
	KindBadRequest        Kind = "bad_request"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindRateLimited       Kind = "rate_limited"
	KindServerError       Kind = "server_error"
	KindUnavailable       Kind = "unavailable"
	KindTimeout           Kind = "timeout"
	KindNetwork           Kind = "network"
	KindMalformedResponse Kind = "malformed_response"
	KindUnknown           Kind = "unknown"
)

// Error is the only error type returned by Client.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("pexels %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("pexels %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

var statusMessages = map[int]string{
	http.StatusBadRequest:         "Bad request. Please check your parameters.",
	http.StatusUnauthorized:       "Invalid API key. Please check your Pexels API key.",
	http.StatusForbidden:          "Access forbidden. API key may have exceeded rate limits.",
	http.StatusNotFound:           "Resource not found.",
	http.StatusTooManyRequests:    "Too many requests. Please try again later.",
	http.StatusInternalServerError: "Pexels server error. Please try again later.",
	http.StatusServiceUnavailable: "Pexels service unavailable. Please try again later.",
}

func statusKind(status int) Kind {
	switch {
	case status == http.StatusBadRequest:
		return KindBadRequest
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusServiceUnavailable:
		return KindUnavailable
	case status >= 500 && status <= 599:
		return KindServerError
	default:
		return KindUnknown
	}
}

func statusError(status int, body string) *Error {
	msg, ok := statusMessages[status]
	if !ok {
		msg = fmt.Sprintf("HTTP Error: %d", status)
	}
	e := &Error{Kind: statusKind(status), Status: status, Message: msg}
	if body != "" {
		e.Err = errors.New(body)
	}
	return e
}

// classifyTransport maps a failed http.Client.Do into the taxonomy. parent is
// the caller's context: a deadline hit on the per-call timeout while the
// parent is still live is a Timeout; a cancelled parent is reported as-is.
func classifyTransport(parent context.Context, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "Request timeout. Please check your connection.", Err: err}
	}
	if errors.Is(err, context.Canceled) && parent.Err() != nil {
		return &Error{Kind: KindUnknown, Message: "Request cancelled.", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "Request timeout. Please check your connection.", Err: err}
	}
	return &Error{Kind: KindNetwork, Message: "Network error. Please check your connection.", Err: err}
}

func malformed(format string, args ...any) *Error {
	return &Error{Kind: KindMalformedResponse, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind of err, or KindUnknown when err did not come from
// this package.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// Retryable reports whether err is transient: server errors, timeouts and
// connectivity failures.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindServerError, KindUnavailable, KindTimeout, KindNetwork:
		return true
	}
	return false
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
