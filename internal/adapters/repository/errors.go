package repository

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrDuplicate    = errors.New("game already on the leaderboard")
	ErrPersistence  = errors.New("leaderboard persistence failed")
)
