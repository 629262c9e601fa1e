// Package model contains domain models passed between layers.
package model

import "github.com/okian/ageguess/internal/domain/game"

// Round is what the guess page shows for the current round.
type Round struct {
	GameID     string
	Subject    string
	Number     int // 1-based
	Remaining  int
	TotalScore int
}

// Outcome is the result of one submitted guess.
type Outcome struct {
	Record     game.RoundRecord
	TotalScore int
	Over       bool
}

// Summary describes a completed game.
type Summary struct {
	GameID     string
	TotalScore int
	History    []game.RoundRecord
	Time       string
}

// BestRound returns the highest scoring round, earliest first on ties.
func (s Summary) BestRound() (game.RoundRecord, bool) {
	if len(s.History) == 0 {
		return game.RoundRecord{}, false
	}
	best := s.History[0]
	for _, r := range s.History[1:] {
		if r.Score > best.Score {
			best = r
		}
	}
	return best, true
}
