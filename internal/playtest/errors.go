package playtest

import "errors"

// Sentinel errors for play test failures.
var (
	ErrUnhealthy      = errors.New("service is not healthy")
	ErrUnexpectedPage = errors.New("unexpected page")
	ErrNoScore        = errors.New("result page has no score")
	ErrUnordered      = errors.New("leaderboard is not ordered")
	ErrMissingScore   = errors.New("leaderboard is missing a submitted score")
)
