package confluence

import "errors"

var (
	// ErrNotFound indicates the requested space or page does not exist
	// or is not visible to the configured credentials.
	ErrNotFound = errors.New("confluence: not found")

	// errPermanent marks request failures that retrying cannot fix.
	errPermanent = errors.New("permanent request failure")
)
