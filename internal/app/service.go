// Package service runs one game request at a time: load the snapshot,
// restore the session, apply one transition and save it back.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/okian/ageguess/internal/adapters/repository"
	"github.com/okian/ageguess/internal/adapters/sessions"
	"github.com/okian/ageguess/internal/domain/dedupe"
	"github.com/okian/ageguess/internal/domain/game"
	"github.com/okian/ageguess/internal/domain/model"
	"github.com/okian/ageguess/internal/domain/scoring"
	"github.com/okian/ageguess/internal/domain/subjects"
	"github.com/okian/ageguess/internal/domain/types"
	"github.com/okian/ageguess/pkg/logger"
	"github.com/okian/ageguess/pkg/metrics"
)

const (
	maxUsernameRunes = 32
	anonymousName    = "Anonymous"
)

// Publisher receives the top of the leaderboard after it changes.
type Publisher interface {
	Publish(entries []types.Entry)
}

// Service implements the game operations behind the HTTP handlers.
type Service struct {
	mu sync.RWMutex

	// Core components
	sessions    sessions.Store
	leaderboard repository.Store
	deduper     dedupe.Deduper
	pool        subjects.Pool
	oracle      subjects.AgeOracle
	resolver    *subjects.Resolver
	replaceOpts []subjects.ResolverOption
	publisher   Publisher
	scorer      game.Scorer

	// Configuration
	storeTimeout    time.Duration
	sweepInterval   time.Duration
	leaderboardSize int
	dedupeSize      int
	now             func() time.Time
	newID           func() string

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	gamesStarted   atomic.Int64
	roundsPlayed   atomic.Int64
	gamesCompleted atomic.Int64
	scoresAccepted atomic.Int64

	logger logger.Logger
}

// New constructs a Service. Without WithPreselected or WithResolver it has
// no subject source and Start fails.
func New(opts ...Option) *Service {
	s := &Service{
		storeTimeout:    2 * time.Second,
		sweepInterval:   10 * time.Minute,
		leaderboardSize: 5,
		dedupeSize:      50000,
		scorer:          scoring.NewLinear(),
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.sessions == nil {
		s.sessions = sessions.NewMemoryStore()
	}
	if s.leaderboard == nil {
		s.leaderboard = repository.NewTreapStore()
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start checks the configuration and starts the session sweeper.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.resolver == nil && (s.pool == nil || s.oracle == nil) {
		return ErrNoSubjectSource
	}

	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.sweepLoop(ctx)

	s.started = true
	s.logger.Info(ctx, "game service started",
		logger.String("mode", s.mode()),
		logger.Duration("storeTimeout", s.storeTimeout),
		logger.Duration("sweepInterval", s.sweepInterval),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop halts the sweeper and closes the stores.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	close(s.stopCh)
	s.wg.Wait()

	if err := s.sessions.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing session store", logger.Error(err))
	}
	if err := s.leaderboard.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing leaderboard", logger.Error(err))
	}

	s.started = false
	s.logger.Info(context.Background(), "game service stopped")
}

func (s *Service) sweepLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep removes expired sessions once.
func (s *Service) Sweep(ctx context.Context) int {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	n, err := s.sessions.Sweep(sctx, s.now())
	if err != nil {
		s.logger.Warn(ctx, "session sweep failed", logger.Error(err))
		return 0
	}
	if n > 0 {
		metrics.RecordSessionsSwept(n)
		s.logger.Debug(ctx, "expired sessions removed", logger.Int("count", n))
	}
	return n
}

func (s *Service) mode() string {
	if s.resolver != nil {
		return "lazy"
	}
	return "preselected"
}

// StartGame begins a new game for sid, discarding any previous one.
func (s *Service) StartGame(ctx context.Context, sid string) error {
	var sess *game.Session
	if s.resolver != nil {
		sess = game.NewLazy(s.newID(), game.WithScorer(s.scorer))
	} else {
		if s.pool == nil {
			return ErrNoSubjectSource
		}
		pctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		names, err := subjects.SamplePool(pctx, s.pool, game.Rounds)
		cancel()
		if err != nil {
			return fmt.Errorf("sample subjects: %w", err)
		}
		sess, err = game.New(s.newID(), names, game.WithScorer(s.scorer))
		if err != nil {
			return err
		}
	}

	if _, err := s.save(ctx, sid, sess, sessions.AnyVersion); err != nil {
		return err
	}
	s.gamesStarted.Add(1)
	metrics.RecordGameStarted()
	s.logger.Debug(ctx, "game started",
		logger.String("sid", sid),
		logger.String("game", sess.ID()),
	)
	return nil
}

// CurrentRound returns the subject to show. A finished game returns
// game.ErrGameOver so the caller can move on to the result.
func (s *Service) CurrentRound(ctx context.Context, sid string) (model.Round, error) {
	sess, version, err := s.load(ctx, sid)
	if err != nil {
		return model.Round{}, err
	}
	if sess.IsOver() {
		if sess.Time() == "" {
			_ = sess.Finalize(s.now())
			if _, err := s.save(ctx, sid, sess, version); err != nil {
				s.logger.Warn(ctx, "saving finalized game", logger.String("sid", sid), logger.Error(err))
			}
		}
		return model.Round{}, game.ErrGameOver
	}

	if !sess.Lazy() {
		return s.checkedRound(ctx, sid, sess, version)
	}
	if name, ok := sess.NextSubject(); ok {
		return roundOf(sess, name), nil
	}

	// Lazy game without a subject yet: draw one and keep it for the guess.
	if s.resolver == nil {
		return model.Round{}, ErrNoSubjectSource
	}
	subject, err := s.resolver.Resolve(ctx)
	if err != nil {
		return model.Round{}, err
	}
	if err := sess.SetPending(subject); err != nil {
		return model.Round{}, err
	}
	if _, err := s.save(ctx, sid, sess, version); err != nil {
		if !errors.Is(err, sessions.ErrVersionConflict) {
			return model.Round{}, err
		}
		// Another tab drew first; show its subject.
		other, _, lerr := s.load(ctx, sid)
		if lerr != nil {
			return model.Round{}, lerr
		}
		if name, ok := other.NextSubject(); ok {
			return roundOf(other, name), nil
		}
		return model.Round{}, err
	}
	return roundOf(sess, subject.Name), nil
}

// checkedRound shows the current pre-selected subject once the oracle knows
// its age. An unknown name is swapped for another pool name through a
// bounded resolver and the swap is saved before the round is shown.
func (s *Service) checkedRound(ctx context.Context, sid string, sess *game.Session, version int64) (model.Round, error) {
	name, _ := sess.NextSubject()
	if s.oracle == nil || s.pool == nil {
		return model.Round{}, ErrNoSubjectSource
	}
	_, err := s.oracle.Age(ctx, name)
	switch {
	case err == nil:
		return roundOf(sess, name), nil
	case !errors.Is(err, subjects.ErrUnknownAge):
		return model.Round{}, subjects.TimeoutOr(err)
	}

	subject, err := subjects.NewResolver(subjects.Excluding(s.pool, sess.Names()), s.oracle, s.replaceOpts...).Resolve(ctx)
	if err != nil {
		if errors.Is(err, subjects.ErrEmptyPool) {
			return model.Round{}, fmt.Errorf("%w: %w", subjects.ErrNameResolutionExhausted, err)
		}
		return model.Round{}, err
	}
	if err := sess.ReplaceNext(subject.Name); err != nil {
		return model.Round{}, err
	}
	if _, err := s.save(ctx, sid, sess, version); err != nil {
		if !errors.Is(err, sessions.ErrVersionConflict) {
			return model.Round{}, err
		}
		other, _, lerr := s.load(ctx, sid)
		if lerr != nil {
			return model.Round{}, lerr
		}
		if name, ok := other.NextSubject(); ok {
			return roundOf(other, name), nil
		}
		return model.Round{}, game.ErrGameOver
	}
	metrics.RecordSubjectReplaced()
	s.logger.Info(ctx, "subject replaced",
		logger.String("sid", sid),
		logger.String("unknown", name),
		logger.String("subject", subject.Name),
	)
	return roundOf(sess, subject.Name), nil
}

func roundOf(sess *game.Session, name string) model.Round {
	return model.Round{
		GameID:     sess.ID(),
		Subject:    name,
		Number:     sess.Attempts() + 1,
		Remaining:  sess.Remaining(),
		TotalScore: sess.TotalScore(),
	}
}

// SubmitGuess scores raw against the current subject and saves the round.
func (s *Service) SubmitGuess(ctx context.Context, sid, raw string) (model.Outcome, error) {
	sess, version, err := s.load(ctx, sid)
	if err != nil {
		return model.Outcome{}, err
	}
	if sess.IsOver() {
		return model.Outcome{}, game.ErrGameOver
	}
	guess, err := scoring.ParseGuess(raw)
	if err != nil {
		return model.Outcome{}, err
	}

	subject, err := s.currentSubject(ctx, sess)
	if err != nil {
		return model.Outcome{}, err
	}

	rec, err := sess.Guess(subject.Name, subject.Age, guess)
	if err != nil {
		return model.Outcome{}, err
	}
	if sess.IsOver() {
		if err := sess.Finalize(s.now()); err != nil {
			return model.Outcome{}, err
		}
	}
	if _, err := s.save(ctx, sid, sess, version); err != nil {
		return model.Outcome{}, err
	}

	s.roundsPlayed.Add(1)
	metrics.RecordRound(rec.Score)
	if sess.IsOver() {
		s.gamesCompleted.Add(1)
		metrics.RecordGameCompleted(sess.TotalScore())
	}
	s.logger.Debug(ctx, "guess scored",
		logger.String("sid", sid),
		logger.String("subject", rec.SubjectName),
		logger.Int("trueAge", rec.TrueAge),
		logger.Float64("guess", rec.UserGuess),
		logger.Int("score", rec.Score),
	)
	return model.Outcome{Record: rec, TotalScore: sess.TotalScore(), Over: sess.IsOver()}, nil
}

// currentSubject returns the name and true age for the round being guessed.
func (s *Service) currentSubject(ctx context.Context, sess *game.Session) (game.Subject, error) {
	if sess.Lazy() {
		subject, ok := sess.Pending()
		if !ok {
			return game.Subject{}, game.ErrNoPendingSubject
		}
		return subject, nil
	}

	name, _ := sess.NextSubject()
	if s.oracle == nil {
		return game.Subject{}, ErrNoSubjectSource
	}
	age, err := s.oracle.Age(ctx, name)
	switch {
	case errors.Is(err, subjects.ErrUnknownAge):
		return game.Subject{}, fmt.Errorf("%w: %w", subjects.ErrNameResolutionExhausted, err)
	case err != nil:
		return game.Subject{}, subjects.TimeoutOr(err)
	}
	return game.Subject{Name: name, Age: age}, nil
}

// Result returns the summary of a completed game. Absent or unfinished
// games return game.ErrNoActiveGame. A game finished without a completion
// time is stamped and saved once; if that save fails the time stays empty.
func (s *Service) Result(ctx context.Context, sid string) (model.Summary, error) {
	sess, version, err := s.load(ctx, sid)
	if err != nil {
		return model.Summary{}, err
	}
	if !sess.IsOver() {
		return model.Summary{}, game.ErrNoActiveGame
	}
	summary := model.Summary{
		GameID:     sess.ID(),
		TotalScore: sess.TotalScore(),
		History:    sess.History(),
		Time:       sess.Time(),
	}
	if summary.Time == "" {
		_ = sess.Finalize(s.now())
		if _, err := s.save(ctx, sid, sess, version); err != nil {
			s.logger.Warn(ctx, "saving finalized game", logger.String("sid", sid), logger.Error(err))
		} else {
			summary.Time = sess.Time()
		}
	}
	return summary, nil
}

// SubmitScore records the completed game of sid under username, once per
// game, and pushes the new top list to the publisher.
func (s *Service) SubmitScore(ctx context.Context, sid, username string) (types.Entry, error) {
	summary, err := s.Result(ctx, sid)
	if err != nil {
		return types.Entry{}, err
	}

	if s.deduper.SeenAndRecord(ctx, summary.GameID) {
		metrics.RecordLeaderboardDuplicate()
		return types.Entry{}, ErrAlreadySubmitted
	}

	entry := types.Entry{
		Username: cleanUsername(username),
		Score:    summary.TotalScore,
		GameID:   summary.GameID,
		PlayedAt: s.now().UTC(),
	}
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	err = s.leaderboard.Append(sctx, entry)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return types.Entry{}, ErrAlreadySubmitted
		}
		s.deduper.Unrecord(ctx, summary.GameID)
		return types.Entry{}, storeError(err)
	}

	s.scoresAccepted.Add(1)
	metrics.RecordLeaderboardSubmit()
	s.logger.Info(ctx, "score submitted",
		logger.String("username", entry.Username),
		logger.Int("score", entry.Score),
		logger.String("game", entry.GameID),
	)

	if s.publisher != nil {
		if top, err := s.Leaderboard(ctx, s.leaderboardSize); err == nil {
			s.publisher.Publish(top)
		} else {
			s.logger.Warn(ctx, "refreshing live leaderboard", logger.Error(err))
		}
	}
	return entry, nil
}

// cleanUsername trims the name and caps its length. Blank names become
// "Anonymous".
func cleanUsername(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return anonymousName
	}
	if utf8.RuneCountInString(name) > maxUsernameRunes {
		name = string([]rune(name)[:maxUsernameRunes])
	}
	return name
}

// Leaderboard returns the top n entries; n <= 0 uses the configured size.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]types.Entry, error) {
	if n <= 0 {
		n = s.leaderboardSize
	}
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	entries, err := s.leaderboard.TopN(sctx, n)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidLimit) {
			return nil, err
		}
		return nil, storeError(err)
	}
	return entries, nil
}

// LeaderboardSize is the default number of entries shown.
func (s *Service) LeaderboardSize() int { return s.leaderboardSize }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"mode":            s.mode(),
		"gamesStarted":    s.gamesStarted.Load(),
		"gamesCompleted":  s.gamesCompleted.Load(),
		"roundsPlayed":    s.roundsPlayed.Load(),
		"scoresSubmitted": s.scoresAccepted.Load(),
		"dedupeSize":      s.dedupeSize,
		"dedupeEntries":   s.deduper.Size(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
	defer cancel()
	if count, err := s.leaderboard.Count(ctx); err == nil {
		stats["leaderboardEntries"] = count
	}
	return stats
}

// load restores the session of sid and returns its stored version.
func (s *Service) load(ctx context.Context, sid string) (*game.Session, int64, error) {
	if sid == "" {
		return nil, 0, game.ErrNoActiveGame
	}
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rec, err := s.sessions.Load(sctx, sid)
	if errors.Is(err, sessions.ErrNotFound) {
		return nil, 0, game.ErrNoActiveGame
	}
	if err != nil {
		return nil, 0, storeError(err)
	}

	sess, err := game.Decode(rec.Data, game.WithScorer(s.scorer))
	if err != nil {
		if errors.Is(err, game.ErrCorruptSnapshot) {
			s.logger.Warn(ctx, "discarding corrupt session", logger.String("sid", sid), logger.Error(err))
		}
		return nil, 0, err
	}
	return sess, rec.Version, nil
}

// save stores sess for sid if nobody else saved since version was read.
func (s *Service) save(ctx context.Context, sid string, sess *game.Session, version int64) (int64, error) {
	data, err := game.Encode(sess)
	if err != nil {
		return 0, err
	}
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	next, err := s.sessions.Save(sctx, sid, data, version)
	if err != nil {
		if errors.Is(err, sessions.ErrVersionConflict) {
			return 0, err
		}
		return 0, storeError(err)
	}
	return next, nil
}

// storeError maps a store deadline to ErrUpstreamTimeout and anything else
// to ErrPersistence.
func storeError(err error) error {
	switch {
	case errors.Is(err, subjects.ErrUpstreamTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", subjects.ErrUpstreamTimeout, err)
	case errors.Is(err, ErrPersistence):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
}
