package repository

import "errors"

// Sentinel kinds for sheet errors.
var (
	ErrUnknownSheet   = errors.New("unknown sheet")
	ErrMalformedSheet = errors.New("malformed sheet")
)
