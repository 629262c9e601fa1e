package game

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Snapshot is the stored form of a Session.
type Snapshot struct {
	ID         string        `json:"id"`
	Attempts   int           `json:"attempts"`
	TotalScore int           `json:"totalScore"`
	History    []RoundRecord `json:"history"`
	Time       string        `json:"time,omitempty"`
	Names      []string      `json:"names,omitempty"`
	Pending    *Subject      `json:"pending,omitempty"`
}

// Snapshot captures every field of the session.
func (s *Session) Snapshot() *Snapshot {
	snap := &Snapshot{
		ID:         s.id,
		Attempts:   s.attempts,
		TotalScore: s.totalScore,
		History:    slices.Clone(s.history),
		Time:       s.time,
		Names:      slices.Clone(s.names),
	}
	if s.pending != nil {
		p := *s.pending
		snap.Pending = &p
	}
	return snap
}

// Restore rebuilds a session from a snapshot. A nil snapshot yields
// ErrNoActiveGame; a snapshot that breaks the session invariants yields
// ErrNoActiveGame wrapping ErrCorruptSnapshot.
func Restore(snap *Snapshot, opts ...Option) (*Session, error) {
	if snap == nil {
		return nil, ErrNoActiveGame
	}
	if err := snap.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrNoActiveGame, ErrCorruptSnapshot, err)
	}
	s := newSession(snap.ID, opts)
	s.attempts = snap.Attempts
	s.totalScore = snap.TotalScore
	s.history = slices.Clone(snap.History)
	s.time = snap.Time
	s.names = slices.Clone(snap.Names)
	if snap.Pending != nil {
		p := *snap.Pending
		s.pending = &p
	}
	return s, nil
}

func (snap *Snapshot) validate() error {
	if snap.Attempts < 0 || snap.Attempts > Rounds {
		return fmt.Errorf("attempts %d out of range", snap.Attempts)
	}
	if len(snap.History) != snap.Attempts {
		return fmt.Errorf("history has %d rounds, attempts is %d", len(snap.History), snap.Attempts)
	}
	sum := 0
	for _, r := range snap.History {
		sum += r.Score
	}
	if sum != snap.TotalScore {
		return fmt.Errorf("total %d does not match history sum %d", snap.TotalScore, sum)
	}
	if len(snap.Names) > 0 {
		if err := validateNames(snap.Names); err != nil {
			return err
		}
		if snap.Pending != nil {
			return fmt.Errorf("pending subject in a pre-selected game")
		}
	}
	if snap.Attempts < Rounds && snap.Time != "" {
		return fmt.Errorf("time set before the last round")
	}
	if snap.Time != "" {
		if _, err := time.Parse(TimeLayout, snap.Time); err != nil {
			return fmt.Errorf("bad time %q", snap.Time)
		}
	}
	if snap.Attempts == Rounds && snap.Pending != nil {
		return fmt.Errorf("pending subject after the last round")
	}
	return nil
}

// Encode serializes the session as JSON.
func Encode(s *Session) ([]byte, error) {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

// Decode parses data written by Encode and restores the session. Empty or
// null data yields ErrNoActiveGame.
func Decode(data []byte, opts ...Option) (*Session, error) {
	if len(data) == 0 {
		return nil, ErrNoActiveGame
	}
	var snap *Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrNoActiveGame, ErrCorruptSnapshot, err)
	}
	return Restore(snap, opts...)
}
