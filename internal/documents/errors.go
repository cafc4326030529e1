package documents

import "errors"

var (
	// ErrNotFound covers both absent documents and documents owned by another
	// user, so existence is never leaked across tenants.
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict signals that a processing run is already in flight.
	ErrConflict = errors.New("document is already processing")
)
