// Package apperrors defines the request-level error taxonomy shared by all
// services. Services wrap these sentinels with context at the point of
// detection; handlers map them to HTTP status codes exactly once, at the
// boundary. Callers check categories with errors.Is.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBadRequest covers malformed identifiers, unknown enum values and
	// duplicate membership adds.
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized is the single login failure: an absent user and a wrong
	// password are deliberately indistinguishable.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound covers any lookup, update or delete targeting an absent id.
	ErrNotFound = errors.New("not found")

	// ErrConflict covers registration with a username already taken.
	ErrConflict = errors.New("conflict")
)

func BadRequest(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrBadRequest)...)
}

func Unauthorized(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrUnauthorized)...)
}

func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// StatusCode maps an error to its HTTP status. Anything outside the taxonomy
// is a 500.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
