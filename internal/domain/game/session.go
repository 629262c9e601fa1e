// Package game models one five-round guessing game as a serializable state
// machine. A Session is InProgress while fewer than Rounds guesses have been
// scored and Complete afterwards; Complete sessions reject further guesses.
package game

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/ageguess/internal/domain/scoring"
)

// Rounds is the number of guesses in one game.
const Rounds = 5

// TimeLayout renders the completion time as MM/DD/YYYY HH:mm:ss.
const TimeLayout = "01/02/2006 15:04:05"

// RoundRecord is one scored guess. Records are never modified after append.
type RoundRecord struct {
	SubjectName string  `json:"subject_name"`
	UserGuess   float64 `json:"userGuess"`
	TrueAge     int     `json:"trueAge"`
	Score       int     `json:"score"`
}

// Subject is a name whose age has already been resolved.
type Subject struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// Scorer computes the points for a guess.
type Scorer interface {
	Score(trueAge int, guess float64) int
}

// Option applies a configuration option to a Session.
type Option func(*Session)

// WithScorer overrides the default linear scorer.
func WithScorer(s Scorer) Option {
	return func(g *Session) {
		if s != nil {
			g.scorer = s
		}
	}
}

// Session is the state of one game. Fields are only changed through methods
// so the invariants below hold after every call:
//
//	0 <= attempts <= Rounds, len(history) == attempts,
//	totalScore == sum(history.Score), time set only once attempts == Rounds.
type Session struct {
	id         string
	attempts   int
	totalScore int
	history    []RoundRecord
	time       string
	names      []string
	pending    *Subject
	scorer     Scorer
}

// New starts a game over a fixed list of Rounds distinct subjects.
func New(id string, names []string, opts ...Option) (*Session, error) {
	if err := validateNames(names); err != nil {
		return nil, err
	}
	s := newSession(id, opts)
	s.names = slices.Clone(names)
	return s, nil
}

// NewLazy starts a game whose subjects are drawn one round at a time.
func NewLazy(id string, opts ...Option) *Session {
	return newSession(id, opts)
}

func newSession(id string, opts []Option) *Session {
	s := &Session{
		id:      id,
		history: []RoundRecord{},
		scorer:  scoring.NewLinear(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateNames(names []string) error {
	if len(names) != Rounds {
		return fmt.Errorf("%w: want %d names, got %d", ErrInvalidNames, Rounds, len(names))
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("%w: blank name", ErrInvalidNames)
		}
		if _, dup := seen[n]; dup {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidNames, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// ID identifies the game across requests and on the leaderboard.
func (s *Session) ID() string { return s.id }

// Attempts is the number of rounds played so far.
func (s *Session) Attempts() int { return s.attempts }

// Remaining is the number of rounds left, counting the current one.
func (s *Session) Remaining() int { return Rounds - s.attempts }

// TotalScore is the sum of all round scores.
func (s *Session) TotalScore() int { return s.totalScore }

// History returns a copy of the scored rounds in play order.
func (s *Session) History() []RoundRecord { return slices.Clone(s.history) }

// Time is the completion timestamp, empty until Finalize.
func (s *Session) Time() string { return s.time }

// Names returns a copy of the pre-selected subjects, nil for lazy games.
func (s *Session) Names() []string { return slices.Clone(s.names) }

// Lazy reports whether subjects are drawn per round.
func (s *Session) Lazy() bool { return len(s.names) == 0 }

// IsOver reports whether all rounds have been played.
func (s *Session) IsOver() bool { return s.attempts >= Rounds }

// NextSubject returns the name to guess in the current round.
func (s *Session) NextSubject() (string, bool) {
	if s.IsOver() {
		return "", false
	}
	if !s.Lazy() {
		return s.names[s.attempts], true
	}
	if s.pending != nil {
		return s.pending.Name, true
	}
	return "", false
}

// Pending returns the resolved subject of the current round in lazy games.
func (s *Session) Pending() (Subject, bool) {
	if s.pending == nil {
		return Subject{}, false
	}
	return *s.pending, true
}

// SetPending assigns the subject of the current round in a lazy game.
func (s *Session) SetPending(subject Subject) error {
	if s.IsOver() {
		return ErrGameOver
	}
	if !s.Lazy() {
		return ErrNotLazy
	}
	if s.pending != nil {
		return ErrPendingSubject
	}
	s.pending = &subject
	return nil
}

// ReplaceNext swaps the unplayed subject of the current round in a
// pre-selected game. Played rounds are never touched.
func (s *Session) ReplaceNext(name string) error {
	if s.IsOver() {
		return ErrGameOver
	}
	if s.Lazy() {
		return ErrLazyGame
	}
	names := slices.Clone(s.names)
	names[s.attempts] = name
	if err := validateNames(names); err != nil {
		return err
	}
	s.names = names
	return nil
}

// Guess scores userGuess against trueAge for subject and records the round.
// A Complete session returns ErrGameOver and is left unchanged.
func (s *Session) Guess(subject string, trueAge int, userGuess float64) (RoundRecord, error) {
	if s.IsOver() {
		return RoundRecord{}, ErrGameOver
	}
	want, ok := s.NextSubject()
	if !ok {
		return RoundRecord{}, ErrNoPendingSubject
	}
	if subject != want {
		return RoundRecord{}, fmt.Errorf("%w: got %q, want %q", ErrSubjectMismatch, subject, want)
	}

	rec := RoundRecord{
		SubjectName: subject,
		UserGuess:   userGuess,
		TrueAge:     trueAge,
		Score:       s.scorer.Score(trueAge, userGuess),
	}
	s.history = append(slices.Clip(s.history), rec)
	s.totalScore += rec.Score
	s.attempts++
	s.pending = nil
	return rec, nil
}

// Finalize stamps the completion time. Calling it again overwrites the stamp.
func (s *Session) Finalize(now time.Time) error {
	if !s.IsOver() {
		return ErrGameInProgress
	}
	s.time = now.Format(TimeLayout)
	return nil
}
