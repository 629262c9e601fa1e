package service

import (
	"errors"

	"github.com/okian/ageguess/internal/adapters/repository"
)

// Sentinel errors returned by the service.
var (
	// ErrPersistence is shared with the leaderboard store so callers can
	// match either with errors.Is.
	ErrPersistence      = repository.ErrPersistence
	ErrAlreadySubmitted = errors.New("game already submitted to the leaderboard")
	ErrNoSubjectSource  = errors.New("no subject source configured")
)
