// Package errs defines the error kinds surfaced by the messaging core.
// Operations wrap one of the sentinel kinds so callers can branch on the
// class of failure without string matching, and the HTTP layer can map a
// wrapped error straight to a status code.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks a malformed or empty payload.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an operation referencing a nonexistent message.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized marks an actor not permitted to touch the target.
	ErrUnauthorized = errors.New("not authorized")
	// ErrUpstream marks a durable-store or blob-host failure.
	ErrUpstream = errors.New("upstream failure")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// Unauthorizedf wraps ErrUnauthorized with a formatted message.
func Unauthorizedf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnauthorized}, args...)...)
}

// Upstreamf wraps ErrUpstream with a formatted message. The underlying
// cause should be included via %v in the message; the kind is what callers
// branch on.
func Upstreamf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUpstream}, args...)...)
}

// HTTPStatus maps an error to the status code its kind implies. Unknown
// errors are treated as internal.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
