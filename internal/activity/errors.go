package activity

import "errors"

// ErrIndexOutOfRange indicates a clear request for a slot that does not exist.
var ErrIndexOutOfRange = errors.New("activity: index out of range")
