package usage

import "errors"

var (
	// ErrNotFound indicates no usage row exists for the period.
	ErrNotFound = errors.New("usage record not found")
	// ErrInvalidDelta indicates a negative increment.
	ErrInvalidDelta = errors.New("usage increments must be non-negative")
	// ErrMissingUser indicates an empty user id.
	ErrMissingUser = errors.New("user id is required")
)
