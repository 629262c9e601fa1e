// Package scoring turns the distance between a guess and the true age into points.
package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Default scoring constants. A guess maxDiff years off or worse scores nothing.
const (
	DefaultMaxDiff  = 50
	DefaultMaxScore = 5000
)

// Option applies a configuration option to a Linear scorer.
type Option func(*Linear)

// WithMaxDiff sets the distance at which the score reaches zero.
func WithMaxDiff(maxDiff float64) Option {
	return func(l *Linear) {
		if maxDiff > 0 {
			l.maxDiff = maxDiff
		}
	}
}

// WithMaxScore sets the score awarded for an exact guess.
func WithMaxScore(maxScore float64) Option {
	return func(l *Linear) {
		if maxScore > 0 {
			l.maxScore = maxScore
		}
	}
}

// Linear decays the score linearly from maxScore at diff 0 to 0 at maxDiff.
type Linear struct {
	maxDiff  float64
	maxScore float64
}

// NewLinear creates a linear scorer with configuration options.
func NewLinear(opts ...Option) *Linear {
	l := &Linear{
		maxDiff:  DefaultMaxDiff,
		maxScore: DefaultMaxScore,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Score returns round(maxScore * (1 - diff/maxDiff)) while diff < maxDiff, else 0.
func (l *Linear) Score(trueAge int, guess float64) int {
	if math.IsNaN(guess) {
		return 0
	}
	diff := math.Abs(float64(trueAge) - guess)
	if diff >= l.maxDiff {
		return 0
	}
	return int(math.Round(l.maxScore * (1 - diff/l.maxDiff)))
}

// MaxDiff reports the zero-score distance.
func (l *Linear) MaxDiff() float64 { return l.maxDiff }

// MaxScore reports the score of an exact guess.
func (l *Linear) MaxScore() float64 { return l.maxScore }

var defaultScorer = NewLinear()

// Score scores a guess with the default constants.
func Score(trueAge int, guess float64) int {
	return defaultScorer.Score(trueAge, guess)
}

// ParseGuess coerces a submitted form value into a number. Negative and
// fractional values are accepted as-is; anything that is not a finite
// number is rejected with ErrMalformedGuess.
func ParseGuess(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrMalformedGuess)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedGuess, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrMalformedGuess, raw)
	}
	return v, nil
}
