// Package sessions stores serialized game snapshots keyed by the opaque
// session id carried in the browser cookie.
package sessions

import (
	"context"
	"time"
)

// AnyVersion makes Save overwrite whatever is stored.
const AnyVersion int64 = -1

// Record is one stored snapshot.
type Record struct {
	Data      []byte
	Version   int64
	ExpiresAt time.Time
}

// Store persists session snapshots with an optimistic version counter.
//
// Save writes data when expected matches the stored version and returns the
// new version. expected == 0 means the key must be absent or expired;
// AnyVersion skips the check. A mismatch returns ErrVersionConflict.
type Store interface {
	Load(ctx context.Context, key string) (Record, error)
	Save(ctx context.Context, key string, data []byte, expected int64) (int64, error)
	Delete(ctx context.Context, key string) error
	// Sweep removes expired records and reports how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
	Close() error
}

// Option applies a configuration option to a session store.
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

func defaultOptions() options {
	return options{
		ttl: 24 * time.Hour,
		now: time.Now,
	}
}

// WithTTL sets how long an untouched session is kept.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
