package wehttp

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/weegigs/wee-ledger-go/we"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusOf maps command and load failures onto http statuses.
func StatusOf(err error) int {
	var moduleError *we.ModuleError
	var notFound we.CommandNotFoundError
	var unknown we.UnknownAggregateError
	var payload *we.InvalidPayloadError
	var encoding *we.InvalidEncodingError

	switch {
	case errors.As(err, &moduleError):
		return http.StatusUnprocessableEntity
	case errors.Is(err, we.BadOrigin):
		return http.StatusUnauthorized
	case errors.As(err, &notFound), errors.As(err, &payload), errors.As(err, &encoding):
		return http.StatusBadRequest
	case errors.Is(err, we.RevisionConflict):
		return http.StatusConflict
	case errors.As(err, &unknown):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a json error body. Internal failures are not described
// to the caller.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}
