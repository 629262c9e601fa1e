package sessions

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/ageguess/pkg/metrics"
)

// MemoryStore keeps sessions in a map. Contents are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	opts    options
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{records: make(map[string]Record), opts: o}
}

// Load returns the live record for key.
func (s *MemoryStore) Load(_ context.Context, key string) (Record, error) {
	if key == "" {
		return Record{}, ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(key)
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Data = slices.Clone(rec.Data)
	return rec, nil
}

// Save writes data under key if expected matches the stored version.
func (s *MemoryStore) Save(_ context.Context, key string, data []byte, expected int64) (int64, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if rec, ok := s.live(key); ok {
		current = rec.Version
	}
	if expected != AnyVersion && expected != current {
		metrics.RecordSessionConflict()
		return 0, fmt.Errorf("%w: expected version %d, found %d", ErrVersionConflict, expected, current)
	}

	next := current + 1
	s.records[key] = Record{
		Data:      slices.Clone(data),
		Version:   next,
		ExpiresAt: s.opts.now().Add(s.opts.ttl),
	}
	return next, nil
}

// Delete removes key. Missing keys are not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Sweep removes records that expired before now.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, rec := range s.records {
		if !rec.ExpiresAt.After(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many records are held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// live must be called with s.mu held.
func (s *MemoryStore) live(key string) (Record, bool) {
	rec, ok := s.records[key]
	if !ok || !rec.ExpiresAt.After(s.opts.now()) {
		return Record{}, false
	}
	return rec, true
}
