package subjects

import "errors"

// Sentinel errors for subject acquisition.
var (
	ErrUnknownAge              = errors.New("age oracle has no age for this name")
	ErrNameResolutionExhausted = errors.New("could not find a name with a known age")
	ErrUpstreamTimeout         = errors.New("upstream timed out")
	ErrEmptyPool               = errors.New("name pool cannot supply enough distinct names")
)
