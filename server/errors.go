package server

import (
	"net/http"

	"github.com/teranos/jobtrail/errors"
)

// statusForError maps the error taxonomy onto HTTP status codes
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.IsAny(err, errors.ErrValidation, errors.ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errors.ErrExtractionParse):
		return http.StatusUnprocessableEntity
	case errors.IsAny(err, errors.ErrFetch, errors.ErrModelUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, errors.ErrModelTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
