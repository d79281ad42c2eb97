package frame

import "errors"

// Sentinel errors for the frame package.
// Use errors.Is() to check for these conditions.
var (
	// ErrUnknownMode indicates an unrecognised encryption mode name.
	ErrUnknownMode = errors.New("frame: unknown encryption mode")

	// ErrEmptyKey indicates a keyed mode was selected without a key.
	ErrEmptyKey = errors.New("frame: key required")

	// ErrInvalidKey indicates the configured key could not be decoded.
	ErrInvalidKey = errors.New("frame: invalid key")
)
