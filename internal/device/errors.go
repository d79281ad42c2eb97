package device

import "errors"

// Sentinel errors for the device package.
// Use errors.Is() to check for these conditions.
var (
	// ErrTableFull indicates the registry already holds MaxDevices devices.
	ErrTableFull = errors.New("device: table full")

	// ErrNotFound indicates no device with the given identifier exists.
	ErrNotFound = errors.New("device: not found")

	// ErrAlreadyExists indicates a device with the identifier is already registered.
	ErrAlreadyExists = errors.New("device: already exists")

	// ErrInvalidName indicates an empty or over-length display name.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidType indicates an unrecognised or inapplicable sensor subtype.
	ErrInvalidType = errors.New("device: invalid sensor type")

	// ErrCapabilityMissing indicates a subtype change for a capability the
	// device does not have.
	ErrCapabilityMissing = errors.New("device: capability missing")

	// ErrCorruptSnapshot indicates the persisted device snapshot could not
	// be decoded.
	ErrCorruptSnapshot = errors.New("device: corrupt snapshot")
)
