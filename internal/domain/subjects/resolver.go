package subjects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/okian/ageguess/internal/domain/game"
	"github.com/okian/ageguess/pkg/logger"
	"github.com/okian/ageguess/pkg/metrics"
)

// Default resolver configuration constants.
const (
	defaultMaxAttempts = 10
	defaultRetryDelay  = 50 * time.Millisecond
)

// ResolverOption applies a configuration option to the Resolver.
type ResolverOption func(*Resolver)

// WithMaxAttempts caps how many names are tried before giving up.
func WithMaxAttempts(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxAttempts = uint(n)
		}
	}
}

// WithRetryDelay sets the pause between attempts. Zero retries immediately.
func WithRetryDelay(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d >= 0 {
			r.retryDelay = d
		}
	}
}

// WithResolverLogger sets a custom logger.
func WithResolverLogger(l logger.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// Resolver draws names from a Generator until the oracle knows an age for
// one of them.
type Resolver struct {
	gen         Generator
	oracle      AgeOracle
	maxAttempts uint
	retryDelay  time.Duration
	logger      logger.Logger
}

// NewResolver creates a resolver with configuration options.
func NewResolver(gen Generator, oracle AgeOracle, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		gen:         gen,
		oracle:      oracle,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxAttempts reports the retry cap.
func (r *Resolver) MaxAttempts() int { return int(r.maxAttempts) }

// Resolve returns a subject with a known age. Names without an age are
// retried up to the cap, then ErrNameResolutionExhausted is returned.
// Generator failures and oracle failures other than ErrUnknownAge stop
// immediately.
func (r *Resolver) Resolve(ctx context.Context) (game.Subject, error) {
	tries := 0
	op := func() (game.Subject, error) {
		tries++
		name, err := r.gen.Next(ctx)
		if err != nil {
			return game.Subject{}, backoff.Permanent(fmt.Errorf("draw name: %w", err))
		}
		name = Normalize(name)
		age, err := r.oracle.Age(ctx, name)
		switch {
		case errors.Is(err, ErrUnknownAge):
			metrics.RecordResolveRetry()
			r.logger.Debug(ctx, "no age for name, drawing another",
				logger.String("name", name),
				logger.Int("attempt", tries),
			)
			return game.Subject{}, err
		case err != nil:
			return game.Subject{}, backoff.Permanent(err)
		}
		return game.Subject{Name: name, Age: age}, nil
	}

	subject, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(r.retryDelay)),
		backoff.WithMaxTries(r.maxAttempts),
	)
	if err != nil {
		if errors.Is(err, ErrUnknownAge) {
			r.logger.Warn(ctx, "name resolution exhausted", logger.Int("attempts", tries))
			return game.Subject{}, fmt.Errorf("%w after %d attempts: %w", ErrNameResolutionExhausted, tries, err)
		}
		return game.Subject{}, TimeoutOr(err)
	}
	return subject, nil
}
