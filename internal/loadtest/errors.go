package loadtest

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrUnhealthy    = errors.New("service is not healthy")
	ErrVerification = errors.New("attendance does not match submitted ballots")
)

// StatusError is a non-2xx API response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Code   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Code)
}
