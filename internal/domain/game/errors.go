package game

import "errors"

// Sentinel errors for game state transitions.
var (
	ErrNoActiveGame     = errors.New("no active game")
	ErrCorruptSnapshot  = errors.New("corrupt session snapshot")
	ErrGameOver         = errors.New("game is already over")
	ErrGameInProgress   = errors.New("game is still in progress")
	ErrInvalidNames     = errors.New("invalid subject names")
	ErrSubjectMismatch  = errors.New("guess is for a different subject")
	ErrNoPendingSubject = errors.New("no subject drawn for this round")
	ErrPendingSubject   = errors.New("round already has a subject")
	ErrNotLazy          = errors.New("game has pre-selected subjects")
	ErrLazyGame         = errors.New("game draws its subjects per round")
)
