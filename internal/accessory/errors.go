package accessory

import "errors"

// Sentinel errors for the accessory package.
// Use errors.Is() to check for these conditions.
var (
	// ErrNotBound indicates the device has no accessory identifier.
	ErrNotBound = errors.New("accessory: device not bound")

	// ErrAlreadyBound indicates the device already has an accessory.
	ErrAlreadyBound = errors.New("accessory: device already bound")

	// ErrIdentifierReused indicates the binding handed back an identifier
	// that does not strictly exceed the device's previous one.
	ErrIdentifierReused = errors.New("accessory: identifier not strictly increasing")

	// ErrUnknownAccessory indicates an operation on an identifier the
	// binding does not know.
	ErrUnknownAccessory = errors.New("accessory: unknown accessory identifier")
)
