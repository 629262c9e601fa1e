package names

import "errors"

// Sentinel errors for name sources.
var (
	ErrNoNames    = errors.New("name list is empty")
	ErrNamesStore = errors.New("names store failed")
)
