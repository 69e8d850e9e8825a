package search

import "errors"

var (
	// ErrEmptyQuery indicates a blank query string.
	ErrEmptyQuery = errors.New("search: empty query")

	// ErrInvalidThreshold indicates a threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("search: invalid threshold")

	// ErrInvalidLimit indicates a limit outside the accepted bounds.
	ErrInvalidLimit = errors.New("search: invalid limit")
)
