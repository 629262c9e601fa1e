package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/ageguess/internal/domain/subjects"
	"github.com/okian/ageguess/pkg/logger"
)

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     Dependencies
	maxLimit int
	logger   logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps Dependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
		logger:   logger.Nop(),
	}
}

// HandleGetLeaderboard handles GET /api/leaderboard?limit=N. Without a limit
// the configured leaderboard size is used.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	n := h.deps.LeaderboardSize()
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrLimitExceeded))
		return
	}
	entries, err := h.deps.Leaderboard(r.Context(), n)
	if err != nil {
		h.logger.Error(r.Context(), "leaderboard query failed", logger.String("op", op), logger.Error(err))
		if errors.Is(err, subjects.ErrUpstreamTimeout) {
			writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
