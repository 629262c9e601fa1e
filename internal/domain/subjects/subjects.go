// Package subjects supplies the people whose ages players guess: name pools,
// name generators, the age oracle contract and the bounded resolver that ties
// a generator to the oracle.
package subjects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Pool supplies distinct names sampled without replacement.
type Pool interface {
	Sample(ctx context.Context, n int) ([]string, error)
}

// Generator produces plausible first names one at a time.
type Generator interface {
	Next(ctx context.Context) (string, error)
}

// AgeOracle infers an age from a first name. A name the oracle knows
// nothing about yields ErrUnknownAge.
type AgeOracle interface {
	Age(ctx context.Context, name string) (int, error)
}

// Normalize trims a name and title-cases it. Casers are stateful, so one is
// built per call.
func Normalize(name string) string {
	return cases.Title(language.Und).String(strings.ToLower(strings.TrimSpace(name)))
}

// SamplePool draws n names from pool and checks they are usable as the
// subjects of one game: normalized, non-blank and distinct.
func SamplePool(ctx context.Context, pool Pool, n int) ([]string, error) {
	names, err := pool.Sample(ctx, n)
	if err != nil {
		return nil, TimeoutOr(err)
	}
	if len(names) != n {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrEmptyPool, n, len(names))
	}
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for _, raw := range names {
		name := Normalize(raw)
		if name == "" {
			return nil, fmt.Errorf("%w: blank name", ErrEmptyPool)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrEmptyPool, name)
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

// Excluding adapts pool to a Generator that never returns a name in used or
// one it already returned, so a Resolver can replace a subject mid-game.
func Excluding(pool Pool, used []string) Generator {
	g := &excludingGenerator{pool: pool, used: make(map[string]struct{}, len(used))}
	for _, name := range used {
		g.used[Normalize(name)] = struct{}{}
	}
	return g
}

type excludingGenerator struct {
	pool Pool
	used map[string]struct{}
}

func (g *excludingGenerator) Next(ctx context.Context) (string, error) {
	names, err := g.pool.Sample(ctx, len(g.used)+1)
	if err != nil {
		return "", TimeoutOr(err)
	}
	for _, raw := range names {
		name := Normalize(raw)
		if name == "" {
			continue
		}
		if _, taken := g.used[name]; taken {
			continue
		}
		g.used[name] = struct{}{}
		return name, nil
	}
	return "", fmt.Errorf("%w: every sampled name is taken", ErrEmptyPool)
}

// TimeoutOr maps a context deadline to ErrUpstreamTimeout and returns any
// other error unchanged.
func TimeoutOr(err error) error {
	if err == nil || errors.Is(err, ErrUpstreamTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	}
	return err
}
