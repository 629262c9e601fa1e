// Package api exposes the operational JSON endpoints next to the game pages.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/okian/ageguess/internal/domain/types"
	"github.com/okian/ageguess/pkg/logger"
)

const defaultMaxLimit = 100

// Dependencies required by the API handlers.
type Dependencies interface {
	Leaderboard(ctx context.Context, n int) ([]Entry, error)
	LeaderboardSize() int
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the operational API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.leaderboardHandler.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers. A maxLimit below one
// falls back to 100.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int, opts ...Option) *Server {
	if maxLimit < 1 {
		maxLimit = defaultMaxLimit
	}
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all API routes to router.
func (s *Server) Register(router *httprouter.Router) {
	router.HandlerFunc(http.MethodGet, "/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	router.HandlerFunc(http.MethodGet, "/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	router.HandlerFunc(http.MethodGet, "/api/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "api_leaderboard"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
