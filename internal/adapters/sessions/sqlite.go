package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/ageguess/internal/adapters/sqlite"
	"github.com/okian/ageguess/pkg/metrics"
)

// SQLiteStore keeps sessions in the sessions table so games survive a
// restart.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(db *sql.DB, opts ...Option) *SQLiteStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SQLiteStore{db: db, opts: o}
}

// Load returns the live record for key.
func (s *SQLiteStore) Load(ctx context.Context, key string) (Record, error) {
	if key == "" {
		return Record{}, ErrEmptyKey
	}
	var (
		rec       Record
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, version, expires_at FROM sessions WHERE key = ? AND expires_at > ?`,
		key, sqlite.UnixMillis(s.opts.now()),
	).Scan(&rec.Data, &rec.Version, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError("sessions", "load")
		return Record{}, fmt.Errorf("load session: %w", err)
	}
	rec.ExpiresAt = sqlite.FromUnixMillis(expiresAt)
	return rec, nil
}

// Save writes data under key if expected matches the stored version.
func (s *SQLiteStore) Save(ctx context.Context, key string, data []byte, expected int64) (int64, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}
	now := s.opts.now()
	nowMs := sqlite.UnixMillis(now)
	expiresAt := sqlite.UnixMillis(now.Add(s.opts.ttl))

	var (
		version int64
		err     error
	)
	switch {
	case expected == AnyVersion:
		err = s.db.QueryRowContext(ctx, `
INSERT INTO sessions (key, data, version, expires_at) VALUES (?, ?, 1, ?)
ON CONFLICT (key) DO UPDATE SET
    data = excluded.data,
    version = CASE WHEN sessions.expires_at > ? THEN sessions.version + 1 ELSE 1 END,
    expires_at = excluded.expires_at
RETURNING version`,
			key, data, expiresAt, nowMs,
		).Scan(&version)
	case expected == 0:
		err = s.db.QueryRowContext(ctx, `
INSERT INTO sessions (key, data, version, expires_at) VALUES (?, ?, 1, ?)
ON CONFLICT (key) DO UPDATE SET
    data = excluded.data,
    version = 1,
    expires_at = excluded.expires_at
WHERE sessions.expires_at <= ?
RETURNING version`,
			key, data, expiresAt, nowMs,
		).Scan(&version)
	default:
		err = s.db.QueryRowContext(ctx, `
UPDATE sessions SET data = ?, version = version + 1, expires_at = ?
WHERE key = ? AND version = ? AND expires_at > ?
RETURNING version`,
			data, expiresAt, key, expected, nowMs,
		).Scan(&version)
	}

	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordSessionConflict()
		return 0, fmt.Errorf("%w: expected version %d", ErrVersionConflict, expected)
	}
	if err != nil {
		metrics.RecordStoreError("sessions", "save")
		return 0, fmt.Errorf("save session: %w", err)
	}
	return version, nil
}

// Delete removes key. Missing keys are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key); err != nil {
		metrics.RecordStoreError("sessions", "delete")
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Sweep removes records that expired before now.
func (s *SQLiteStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, sqlite.UnixMillis(now))
	if err != nil {
		metrics.RecordStoreError("sessions", "sweep")
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return int(n), nil
}

// Close is a no-op; the database handle is owned by the caller.
func (s *SQLiteStore) Close() error { return nil }
