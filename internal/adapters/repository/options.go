package repository

import "time"

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithClock overrides the time source used for entries without PlayedAt.
func WithClock(now func() time.Time) Option {
	return func(s *TreapStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxEntries keeps only the best n entries. n <= 0 keeps everything.
func WithMaxEntries(n int) Option {
	return func(s *TreapStore) {
		s.maxEntries = n
	}
}
