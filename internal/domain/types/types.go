// Package types contains common types used across the application
package types

import "time"

// Entry represents a leaderboard entry
type Entry struct {
	Rank     int       `json:"rank"`
	Username string    `json:"username"`
	Score    int       `json:"score"`
	GameID   string    `json:"-"`
	PlayedAt time.Time `json:"played_at"`
}
