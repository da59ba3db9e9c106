package session

import "errors"

// ErrMissingID is returned when a session without an id is stored.
var ErrMissingID = errors.New("session has no id")
