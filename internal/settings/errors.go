package settings

import "errors"

// ErrInvalidSettings indicates a settings update failed validation.
var ErrInvalidSettings = errors.New("settings: invalid settings")
