package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/okian/ageguess/internal/adapters/sqlite"
	"github.com/okian/ageguess/internal/domain/types"
	"github.com/okian/ageguess/pkg/metrics"
)

// SQLiteStore is the persisted leaderboard.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Append inserts one row. The UNIQUE game_id column rejects a second
// submission of the same game.
func (s *SQLiteStore) Append(ctx context.Context, e types.Entry) error {
	if e.PlayedAt.IsZero() {
		e.PlayedAt = s.now()
	}
	var gameID any
	if e.GameID != "" {
		gameID = e.GameID
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leaderboard (username, score, game_id, played_at) VALUES (?, ?, ?, ?)
ON CONFLICT (game_id) DO NOTHING`,
		strings.TrimSpace(e.Username), e.Score, gameID, sqlite.UnixMillis(e.PlayedAt),
	)
	if err != nil {
		metrics.RecordStoreError("leaderboard", "append")
		return fmt.Errorf("%w: append: %w", ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: append: %w", ErrPersistence, err)
	}
	if n == 0 {
		metrics.RecordLeaderboardDuplicate()
		return fmt.Errorf("%w: %s", ErrDuplicate, e.GameID)
	}
	return nil
}

// TopN returns the top N entries ordered by score desc, earliest first.
func (s *SQLiteStore) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, score, COALESCE(game_id, ''), played_at FROM leaderboard
ORDER BY score DESC, id ASC LIMIT ?`, n)
	if err != nil {
		metrics.RecordStoreError("leaderboard", "top")
		return nil, fmt.Errorf("%w: top: %w", ErrPersistence, err)
	}
	defer rows.Close()

	out := make([]types.Entry, 0, n)
	for rows.Next() {
		var (
			e        types.Entry
			playedAt int64
		)
		if err := rows.Scan(&e.Username, &e.Score, &e.GameID, &playedAt); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrPersistence, err)
		}
		e.PlayedAt = sqlite.FromUnixMillis(playedAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreError("leaderboard", "top")
		return nil, fmt.Errorf("%w: top: %w", ErrPersistence, err)
	}
	assignRanksWithTies(out)
	return out, nil
}

// Count returns the number of stored entries.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leaderboard`).Scan(&n); err != nil {
		metrics.RecordStoreError("leaderboard", "count")
		return 0, fmt.Errorf("%w: count: %w", ErrPersistence, err)
	}
	return n, nil
}

// Close is a no-op; the database handle is owned by the caller.
func (s *SQLiteStore) Close() error { return nil }
