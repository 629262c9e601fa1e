package oracle

import "errors"

// Sentinel errors for the age oracle.
var (
	ErrUpstream    = errors.New("age oracle request failed")
	ErrRateLimited = errors.New("age oracle rate limit reached")
	ErrBadResponse = errors.New("age oracle returned an unreadable response")
)
