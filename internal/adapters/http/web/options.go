package web

import (
	"net/http"

	"github.com/okian/ageguess/pkg/logger"
)

// DefaultCookieName names the cookie carrying the browser session id.
const DefaultCookieName = "ageguess_sid"

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.cookieName = name
		}
	}
}

// WithSecureCookies marks the session cookie Secure.
func WithSecureCookies(secure bool) Option {
	return func(s *Server) { s.secureCookies = secure }
}

// WithPublicURL sets the address encoded in the share QR code. Without it
// the address is derived from the request.
func WithPublicURL(url string) Option {
	return func(s *Server) { s.publicURL = url }
}

// WithLive mounts a live leaderboard feed at /leaderboard/live.
func WithLive(h http.Handler) Option {
	return func(s *Server) { s.live = h }
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}
