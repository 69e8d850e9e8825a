package storage

import "errors"

var (
	// ErrNotFound indicates the referenced row does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidVector indicates a vector whose dimensionality does not
	// match the deployment constant.
	ErrInvalidVector = errors.New("storage: invalid vector dimension")

	// ErrClosed indicates an operation on a closed store.
	ErrClosed = errors.New("storage: store closed")
)
