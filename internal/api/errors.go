package api

import (
	"errors"
	"net/http"

	"github.com/glabrego/prismwalls/internal/pexels"
)

func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	WriteJSON(w, r, http.StatusBadRequest, ErrorResponse(9400, string(pexels.KindBadRequest), msg))
}

func NotFound(w http.ResponseWriter, r *http.Request, msg string) {
	WriteJSON(w, r, http.StatusNotFound, ErrorResponse(9404, string(pexels.KindNotFound), msg))
}

func Conflict(w http.ResponseWriter, r *http.Request, msg string) {
	WriteJSON(w, r, http.StatusConflict, ErrorResponse(9409, "superseded", msg))
}

// statusFor maps a provider failure onto the bridge's HTTP status. Upstream
// credential problems are the server's fault, not the caller's.
func statusFor(kind pexels.Kind) int {
	switch kind {
	case pexels.KindBadRequest:
		return http.StatusBadRequest
	case pexels.KindNotFound:
		return http.StatusNotFound
	case pexels.KindRateLimited:
		return http.StatusTooManyRequests
	case pexels.KindTimeout:
		return http.StatusGatewayTimeout
	case pexels.KindUnauthorized, pexels.KindForbidden, pexels.KindServerError,
		pexels.KindUnavailable, pexels.KindNetwork, pexels.KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err in the envelope. Provider errors keep their kind and
// human-readable message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *pexels.Error
	if !errors.As(err, &pe) {
		WriteJSON(w, r, http.StatusInternalServerError, ErrorResponse(9500, string(pexels.KindUnknown), err.Error()))
		return
	}
	status := statusFor(pe.Kind)
	WriteJSON(w, r, status, ErrorResponse(9000+status, string(pe.Kind), pe.Message))
}
