// Package repository defines the leaderboard store interface and its
// in-memory and SQLite implementations.
package repository

import (
	"context"

	"github.com/okian/ageguess/internal/domain/types"
)

// Store provides read/write access to the leaderboard.
//
// Entries are ordered by score descending, then by submission order, so
// the earlier of two equal scores ranks first.
type Store interface {
	// Append records one finished game. An entry whose GameID is already
	// stored returns ErrDuplicate.
	Append(ctx context.Context, e types.Entry) error

	// TopN returns up to n entries in rank order. n < 1 returns
	// ErrInvalidLimit.
	TopN(ctx context.Context, n int) ([]types.Entry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	Close() error
}

// assignRanksWithTies gives equal scores the same rank and moves to the
// next consecutive rank on the first lower score.
func assignRanksWithTies(entries []types.Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Score != entries[i-1].Score {
			rank++
		}
		entries[i].Rank = rank
	}
}
