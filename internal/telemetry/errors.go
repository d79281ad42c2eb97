package telemetry

import "errors"

// Sentinel errors for the telemetry package.
// Use errors.Is() to check for these conditions.
var (
	// ErrMalformedRecord indicates the payload was not a valid telemetry record.
	// Wrong encryption keys surface here: garbage bytes never parse as JSON.
	ErrMalformedRecord = errors.New("telemetry: malformed record")

	// ErrSecretMismatch indicates the record's shared secret did not match.
	ErrSecretMismatch = errors.New("telemetry: shared secret mismatch")

	// ErrMissingIdentifier indicates the record carried no device identifier.
	ErrMissingIdentifier = errors.New("telemetry: missing device identifier")
)
