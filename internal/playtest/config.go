// Package playtest drives complete games against a running server the way a
// browser would and checks the resulting leaderboard.
package playtest

import (
	"time"

	"github.com/okian/ageguess/pkg/logger"
)

// Config holds configuration for a play test run.
type Config struct {
	BaseURL string        // Base URL of the server
	Games   int           // Number of games to play
	Workers int           // Number of concurrent players
	TopN    int           // Number of leaderboard entries to fetch
	Timeout time.Duration // HTTP request timeout
	Seed    uint64        // Seed for usernames and guesses; 0 picks one
	Verbose bool          // Log every game
	Logger  logger.Logger // Defaults to a no-op logger
}

// Entry mirrors a row of GET /api/leaderboard.
type Entry struct {
	Rank     int       `json:"rank"`
	Username string    `json:"username"`
	Score    int       `json:"score"`
	PlayedAt time.Time `json:"played_at"`
}

// GameResult is the outcome of one bot game.
type GameResult struct {
	Username  string
	Score     int
	Rounds    int
	Submitted bool
}

// Stats holds test statistics.
type Stats struct {
	GamesStarted       int
	GamesCompleted     int
	GamesFailed        int
	RoundsPlayed       int
	ScoresSubmitted    int
	BestScore          int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
