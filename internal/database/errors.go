package database

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks transient storage failures (connection refused, timeouts).
	ErrUnavailable = errors.New("storage unavailable")
)
