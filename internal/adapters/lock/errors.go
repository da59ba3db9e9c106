package lock

import "errors"

// Sentinel kinds for lock errors.
var (
	ErrLockTimeout = errors.New("lock not acquired")
	ErrNotHeld     = errors.New("lock not held")
)
