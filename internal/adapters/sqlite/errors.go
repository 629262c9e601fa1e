package sqlite

import "errors"

// Sentinel errors for opening the database.
var (
	ErrEmptyPath = errors.New("sqlite path is required")
	ErrMigrate   = errors.New("sqlite migration failed")
)
