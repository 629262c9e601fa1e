package sessions

import "errors"

// Sentinel errors for session storage.
var (
	ErrNotFound        = errors.New("session not found")
	ErrVersionConflict = errors.New("session was changed by another request")
	ErrEmptyKey        = errors.New("session key is required")
)
