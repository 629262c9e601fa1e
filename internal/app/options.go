package service

import (
	"time"

	"github.com/okian/ageguess/internal/adapters/repository"
	"github.com/okian/ageguess/internal/adapters/sessions"
	"github.com/okian/ageguess/internal/domain/game"
	"github.com/okian/ageguess/internal/domain/subjects"
	"github.com/okian/ageguess/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSessionStore sets where game snapshots are kept.
func WithSessionStore(store sessions.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.sessions = store
		}
	}
}

// WithLeaderboard sets the leaderboard store.
func WithLeaderboard(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.leaderboard = store
		}
	}
}

// WithPreselected plays games over five names sampled from pool at start,
// with ages looked up from oracle as each guess is scored.
func WithPreselected(pool subjects.Pool, oracle subjects.AgeOracle) Option {
	return func(s *Service) {
		s.pool = pool
		s.oracle = oracle
		s.resolver = nil
	}
}

// WithReplacement configures the resolver that swaps a pre-selected subject
// the oracle has no age for.
func WithReplacement(opts ...subjects.ResolverOption) Option {
	return func(s *Service) {
		s.replaceOpts = append(s.replaceOpts, opts...)
	}
}

// WithResolver plays lazy games that draw and resolve one subject per round.
func WithResolver(r *subjects.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
			s.pool = nil
		}
	}
}

// WithPublisher receives the new top list after every submission.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithScorer overrides the default linear scorer.
func WithScorer(sc game.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithStoreTimeout bounds every session and leaderboard call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithSweepInterval sets how often expired sessions are removed.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithLeaderboardSize sets the default number of entries shown.
func WithLeaderboardSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.leaderboardSize = n
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how game ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}
