package gateway

import "errors"

// Domain-specific errors for gateway operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrStopped is returned when a command is posted to a gateway whose
	// loop has already exited.
	ErrStopped = errors.New("gateway: loop stopped")
)
