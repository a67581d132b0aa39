// Package apperr defines the error taxonomy shared by the workflow packages.
// Workflows return these sentinels wrapped with context; the HTTP layer maps
// them onto status codes and response error codes.
package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrExpired    = errors.New("expired")
	ErrValidation = errors.New("invalid request")
	ErrUpstream   = errors.New("upstream failure")
	ErrStorage    = errors.New("storage failure")
	ErrNotReady   = errors.New("not ready")
)

// Kind returns a short machine-readable label for a wrapped sentinel,
// "internal" when the error matches none of them.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	default:
		return "internal"
	}
}
