package web

import "errors"

// Sentinel errors for page rendering.
var (
	ErrUnknownPage = errors.New("unknown page template")
	ErrRender      = errors.New("render page")
	ErrShareCode   = errors.New("generate share code")
)
