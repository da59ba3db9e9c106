// Package domain holds the error taxonomy shared by the voting core and its
// adapters.
package domain

import "errors"

// Domain errors.
var (
	ErrValidation        = errors.New("validation failed")
	ErrEventNotFound     = errors.New("event not found")
	ErrEventLocked       = errors.New("event voting is closed")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrConflict          = errors.New("table changed since snapshot")
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrInvalidTransition = errors.New("invalid wizard transition")
	ErrSessionNotFound   = errors.New("session not found")
	ErrUnauthorized      = errors.New("administrator credentials required")
	ErrBackpressure      = errors.New("writer queue is full")
	ErrDuplicateEvent    = errors.New("event already exists")
)

// codes maps each sentinel to the stable identifier used by the API and the
// translation catalog. Order matters: the first match wins.
var codes = []struct {
	err  error
	code string
}{
	{ErrValidation, "validation_error"},
	{ErrEventNotFound, "event_not_found"},
	{ErrEventLocked, "event_locked"},
	{ErrStoreUnavailable, "store_unavailable"},
	{ErrConflict, "conflict"},
	{ErrInvalidSubmission, "invalid_submission"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrSessionNotFound, "session_not_found"},
	{ErrUnauthorized, "unauthorized"},
	{ErrBackpressure, "backpressure"},
	{ErrDuplicateEvent, "duplicate_event"},
}

// Code returns the stable code of the first domain sentinel wrapped by err,
// or "" when err carries none.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

// Retryable reports whether the caller may retry the same operation later
// without changing its input.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrBackpressure)
}
