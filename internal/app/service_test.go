package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/ageguess/internal/adapters/repository"
	"github.com/okian/ageguess/internal/adapters/sessions"
	service "github.com/okian/ageguess/internal/app"
	"github.com/okian/ageguess/internal/domain/game"
	"github.com/okian/ageguess/internal/domain/scoring"
	"github.com/okian/ageguess/internal/domain/subjects"
	"github.com/okian/ageguess/internal/domain/types"
	"github.com/okian/ageguess/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

type fixedPool []string

func (p fixedPool) Sample(context.Context, int) ([]string, error) { return p, nil }

// prefixPool samples the first n names, like a pool that happens to draw in
// list order.
type prefixPool []string

func (p prefixPool) Sample(_ context.Context, n int) ([]string, error) {
	return p[:min(n, len(p))], nil
}

type mapOracle struct {
	mu    sync.Mutex
	ages  map[string]int
	err   error
	calls int
}

func (o *mapOracle) Age(_ context.Context, name string) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return 0, o.err
	}
	age, ok := o.ages[name]
	if !ok {
		return 0, subjects.ErrUnknownAge
	}
	return age, nil
}

type sliceGenerator struct {
	mu    sync.Mutex
	names []string
	calls int
}

func (g *sliceGenerator) Next(context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	name := g.names[g.calls%len(g.names)]
	g.calls++
	return name, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	lists [][]types.Entry
}

func (p *recordingPublisher) Publish(entries []types.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lists = append(p.lists, entries)
}

func (p *recordingPublisher) last() []types.Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.lists) == 0 {
		return nil
	}
	return p.lists[len(p.lists)-1]
}

// brokenStore fails every call with err.
type brokenStore struct {
	sessions.Store
	err error
}

func (b brokenStore) Load(context.Context, string) (sessions.Record, error) {
	return sessions.Record{}, b.err
}

func (b brokenStore) Save(context.Context, string, []byte, int64) (int64, error) {
	return 0, b.err
}

// readOnlyStore loads normally and rejects every write.
type readOnlyStore struct {
	*sessions.MemoryStore
}

func (readOnlyStore) Save(context.Context, string, []byte, int64) (int64, error) {
	return 0, errors.New("read-only")
}

// racingStore lets another writer slip in before every versioned save.
type racingStore struct {
	*sessions.MemoryStore
}

func (r racingStore) Save(ctx context.Context, key string, data []byte, expected int64) (int64, error) {
	if expected > 0 {
		if rec, err := r.MemoryStore.Load(ctx, key); err == nil {
			_, _ = r.MemoryStore.Save(ctx, key, rec.Data, sessions.AnyVersion)
		}
	}
	return r.MemoryStore.Save(ctx, key, data, expected)
}

var (
	gameNames = []string{"Ana", "Ben", "Cleo", "Dana", "Eli"}
	gameAges  = map[string]int{"Ana": 30, "Ben": 40, "Cleo": 50, "Dana": 60, "Eli": 70}
)

func newPreselected(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithPreselected(fixedPool(gameNames), &mapOracle{ages: gameAges}),
		service.WithClock(func() time.Time { return fixedNow }),
	}
	return service.New(append(base, opts...)...)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service without a subject source", t, func() {
		svc := service.New()

		Convey("Then it refuses to start", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrNoSubjectSource), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given a configured service", t, func() {
		svc := newPreselected()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When starting and stopping it", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			So(svc.GetStats()["mode"], ShouldEqual, "preselected")

			svc.Stop()
			svc.Stop()

			Convey("Then it is marked as stopped and can start again", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Start(ctx), ShouldBeNil)
				svc.Stop()
			})
		})
	})
}

func TestService_PreselectedGame(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started preselected game", t, func() {
		pub := &recordingPublisher{}
		svc := newPreselected(service.WithPublisher(pub))
		So(svc.StartGame(ctx, "sid-1"), ShouldBeNil)

		Convey("When asking for the first round", func() {
			round, err := svc.CurrentRound(ctx, "sid-1")

			Convey("Then the first name is shown", func() {
				So(err, ShouldBeNil)
				So(round.Subject, ShouldEqual, "Ana")
				So(round.Number, ShouldEqual, 1)
				So(round.Remaining, ShouldEqual, 5)
				So(round.GameID, ShouldNotBeEmpty)
			})
		})

		Convey("When guessing exactly", func() {
			out, err := svc.SubmitGuess(ctx, "sid-1", "30")

			Convey("Then the round scores the maximum and advances", func() {
				So(err, ShouldBeNil)
				So(out.Record.Score, ShouldEqual, 5000)
				So(out.Record.SubjectName, ShouldEqual, "Ana")
				So(out.Over, ShouldBeFalse)

				round, err := svc.CurrentRound(ctx, "sid-1")
				So(err, ShouldBeNil)
				So(round.Subject, ShouldEqual, "Ben")
				So(round.Number, ShouldEqual, 2)
				So(round.TotalScore, ShouldEqual, 5000)
			})
		})

		Convey("When the guess is malformed", func() {
			_, err := svc.SubmitGuess(ctx, "sid-1", "thirty")

			Convey("Then nothing changes", func() {
				So(errors.Is(err, scoring.ErrMalformedGuess), ShouldBeTrue)
				round, err := svc.CurrentRound(ctx, "sid-1")
				So(err, ShouldBeNil)
				So(round.Number, ShouldEqual, 1)
			})
		})

		Convey("When the result is requested mid-game", func() {
			_, err := svc.Result(ctx, "sid-1")
			So(errors.Is(err, game.ErrNoActiveGame), ShouldBeTrue)

			_, err = svc.SubmitScore(ctx, "sid-1", "ana")
			So(errors.Is(err, game.ErrNoActiveGame), ShouldBeTrue)
		})

		Convey("When a new game is started over an old one", func() {
			_, err := svc.SubmitGuess(ctx, "sid-1", "10")
			So(err, ShouldBeNil)
			So(svc.StartGame(ctx, "sid-1"), ShouldBeNil)

			round, err := svc.CurrentRound(ctx, "sid-1")
			So(err, ShouldBeNil)
			So(round.Number, ShouldEqual, 1)
			So(round.TotalScore, ShouldEqual, 0)
		})

		Convey("When all five rounds are played", func() {
			guesses := []string{"30", "65", "50", "110", "70.5"}
			var last error
			var over bool
			for _, g := range guesses {
				out, err := svc.SubmitGuess(ctx, "sid-1", g)
				last, over = err, out.Over
			}
			So(last, ShouldBeNil)
			So(over, ShouldBeTrue)

			Convey("Then the game is over", func() {
				_, err := svc.CurrentRound(ctx, "sid-1")
				So(errors.Is(err, game.ErrGameOver), ShouldBeTrue)

				_, err = svc.SubmitGuess(ctx, "sid-1", "30")
				So(errors.Is(err, game.ErrGameOver), ShouldBeTrue)
			})

			Convey("Then the result sums the rounds and carries the time", func() {
				summary, err := svc.Result(ctx, "sid-1")
				So(err, ShouldBeNil)
				So(len(summary.History), ShouldEqual, 5)
				So(summary.TotalScore, ShouldEqual, 5000+2500+5000+0+4950)
				So(summary.Time, ShouldEqual, "03/09/2024 14:05:07")
			})

			Convey("Then the score can be submitted once", func() {
				entry, err := svc.SubmitScore(ctx, "sid-1", "  ana  ")
				So(err, ShouldBeNil)
				So(entry.Username, ShouldEqual, "ana")
				So(entry.Score, ShouldEqual, 17450)

				_, err = svc.SubmitScore(ctx, "sid-1", "ana again")
				So(errors.Is(err, service.ErrAlreadySubmitted), ShouldBeTrue)

				top, err := svc.Leaderboard(ctx, 0)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 1)
				So(top[0].Rank, ShouldEqual, 1)

				So(pub.last(), ShouldHaveLength, 1)
				So(pub.last()[0].Username, ShouldEqual, "ana")

				stats := svc.GetStats()
				So(stats["gamesStarted"], ShouldEqual, int64(1))
				So(stats["gamesCompleted"], ShouldEqual, int64(1))
				So(stats["roundsPlayed"], ShouldEqual, int64(5))
				So(stats["scoresSubmitted"], ShouldEqual, int64(1))
				So(stats["leaderboardEntries"], ShouldEqual, 1)
			})

			Convey("Then a blank username is recorded as Anonymous", func() {
				entry, err := svc.SubmitScore(ctx, "sid-1", "   ")
				So(err, ShouldBeNil)
				So(entry.Username, ShouldEqual, "Anonymous")
			})
		})
	})
}

func TestService_NoActiveGame(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session id that never started a game", t, func() {
		svc := newPreselected()

		Convey("Then every game operation reports no active game", func() {
			_, err := svc.CurrentRound(ctx, "unknown")
			So(errors.Is(err, game.ErrNoActiveGame), ShouldBeTrue)

			_, err = svc.SubmitGuess(ctx, "unknown", "30")
			So(errors.Is(err, game.ErrNoActiveGame), ShouldBeTrue)

			_, err = svc.Result(ctx, "unknown")
			So(errors.Is(err, game.ErrNoActiveGame), ShouldBeTrue)

			_, err = svc.CurrentRound(ctx, "")
			So(errors.Is(err, game.ErrNoActiveGame), ShouldBeTrue)
		})
	})

	Convey("Given a corrupt stored snapshot", t, func() {
		store := sessions.NewMemoryStore()
		svc := newPreselected(service.WithSessionStore(store))
		_, err := store.Save(ctx, "sid-x", []byte(`{"attempts":3,"history":[]}`), 0)
		So(err, ShouldBeNil)

		Convey("Then it is treated as no active game", func() {
			_, err := svc.CurrentRound(ctx, "sid-x")
			So(errors.Is(err, game.ErrNoActiveGame), ShouldBeTrue)
			So(errors.Is(err, game.ErrCorruptSnapshot), ShouldBeTrue)
		})
	})
}

func TestService_OracleFailures(t *testing.T) {
	ctx := context.Background()

	Convey("Given an oracle that knows no ages", t, func() {
		svc := service.New(service.WithPreselected(fixedPool(gameNames), &mapOracle{ages: map[string]int{}}))
		So(svc.StartGame(ctx, "sid-1"), ShouldBeNil)

		Convey("Then guessing and showing the round report name resolution exhausted", func() {
			_, err := svc.SubmitGuess(ctx, "sid-1", "30")
			So(errors.Is(err, subjects.ErrNameResolutionExhausted), ShouldBeTrue)

			_, err = svc.CurrentRound(ctx, "sid-1")
			So(errors.Is(err, subjects.ErrNameResolutionExhausted), ShouldBeTrue)
		})
	})

	Convey("Given an oracle that times out", t, func() {
		oracle := &mapOracle{err: context.DeadlineExceeded}
		svc := service.New(service.WithPreselected(fixedPool(gameNames), oracle))
		So(svc.StartGame(ctx, "sid-1"), ShouldBeNil)

		Convey("Then guessing reports an upstream timeout", func() {
			_, err := svc.SubmitGuess(ctx, "sid-1", "30")
			So(errors.Is(err, subjects.ErrUpstreamTimeout), ShouldBeTrue)
		})
	})

	Convey("Given a pool with too few names", t, func() {
		svc := service.New(service.WithPreselected(fixedPool{"Ana", "Ben"}, &mapOracle{ages: gameAges}))

		Convey("Then starting a game fails", func() {
			err := svc.StartGame(ctx, "sid-1")
			So(errors.Is(err, subjects.ErrEmptyPool), ShouldBeTrue)
		})
	})
}

func TestService_SubjectReplacement(t *testing.T) {
	ctx := context.Background()
	pool := prefixPool{"Ana", "Ben", "Cleo", "Dana", "Eli", "Fay", "Gus"}

	Convey("Given a preselected game whose second subject has no known age", t, func() {
		oracle := &mapOracle{ages: map[string]int{"Ana": 30, "Cleo": 50, "Dana": 60, "Eli": 70, "Fay": 25, "Gus": 45}}
		svc := service.New(
			service.WithPreselected(pool, oracle),
			service.WithReplacement(subjects.WithRetryDelay(0)),
		)
		So(svc.StartGame(ctx, "sid-1"), ShouldBeNil)
		_, err := svc.SubmitGuess(ctx, "sid-1", "30")
		So(err, ShouldBeNil)

		Convey("When the second round is shown", func() {
			round, err := svc.CurrentRound(ctx, "sid-1")

			Convey("Then an unused name with a known age takes its place", func() {
				So(err, ShouldBeNil)
				So(round.Subject, ShouldEqual, "Fay")
				So(round.Number, ShouldEqual, 2)

				again, err := svc.CurrentRound(ctx, "sid-1")
				So(err, ShouldBeNil)
				So(again.Subject, ShouldEqual, "Fay")
			})

			Convey("Then the game can be finished", func() {
				out, err := svc.SubmitGuess(ctx, "sid-1", "25")
				So(err, ShouldBeNil)
				So(out.Record.SubjectName, ShouldEqual, "Fay")
				So(out.Record.Score, ShouldEqual, 5000)

				for _, g := range []string{"50", "60", "70"} {
					_, err := svc.CurrentRound(ctx, "sid-1")
					So(err, ShouldBeNil)
					_, err = svc.SubmitGuess(ctx, "sid-1", g)
					So(err, ShouldBeNil)
				}
				summary, err := svc.Result(ctx, "sid-1")
				So(err, ShouldBeNil)
				So(summary.TotalScore, ShouldEqual, 25000)
				So(summary.History[1].SubjectName, ShouldEqual, "Fay")
			})
		})
	})

	Convey("Given a pool where no replacement has a known age", t, func() {
		oracle := &mapOracle{ages: map[string]int{"Ana": 30}}
		svc := service.New(
			service.WithPreselected(pool, oracle),
			service.WithReplacement(subjects.WithRetryDelay(0), subjects.WithMaxAttempts(2)),
		)
		So(svc.StartGame(ctx, "sid-1"), ShouldBeNil)
		_, err := svc.SubmitGuess(ctx, "sid-1", "30")
		So(err, ShouldBeNil)

		Convey("Then showing the round gives up after the cap", func() {
			_, err := svc.CurrentRound(ctx, "sid-1")
			So(errors.Is(err, subjects.ErrNameResolutionExhausted), ShouldBeTrue)
			// Ana, Ben, then Fay and Gus.
			So(oracle.calls, ShouldEqual, 4)
		})
	})
}

func TestService_ResultStamp(t *testing.T) {
	ctx := context.Background()

	Convey("Given a finished game saved without a completion time", t, func() {
		store := sessions.NewMemoryStore()
		now := fixedNow
		svc := newPreselected(
			service.WithSessionStore(store),
			service.WithClock(func() time.Time { return now }),
		)
		sess, err := game.New("game-1", gameNames)
		So(err, ShouldBeNil)
		for _, name := range gameNames {
			_, err := sess.Guess(name, gameAges[name], float64(gameAges[name]))
			So(err, ShouldBeNil)
		}
		data, err := game.Encode(sess)
		So(err, ShouldBeNil)
		_, err = store.Save(ctx, "sid-1", data, sessions.AnyVersion)
		So(err, ShouldBeNil)

		Convey("When the result is viewed twice", func() {
			first, err := svc.Result(ctx, "sid-1")
			So(err, ShouldBeNil)
			now = now.Add(time.Hour)
			second, err := svc.Result(ctx, "sid-1")
			So(err, ShouldBeNil)

			Convey("Then the first stamp is kept", func() {
				So(first.Time, ShouldEqual, "03/09/2024 14:05:07")
				So(second.Time, ShouldEqual, first.Time)
			})
		})

		Convey("When the stamp cannot be saved", func() {
			failing := newPreselected(service.WithSessionStore(readOnlyStore{store}))
			summary, err := failing.Result(ctx, "sid-1")

			Convey("Then the time is left empty", func() {
				So(err, ShouldBeNil)
				So(summary.Time, ShouldBeEmpty)
				So(summary.TotalScore, ShouldEqual, 25000)
			})
		})
	})
}

func TestService_LazyGame(t *testing.T) {
	ctx := context.Background()

	Convey("Given a lazy game over a generator with unknown names", t, func() {
		gen := &sliceGenerator{names: []string{"Zzyx", "Emma"}}
		oracle := &mapOracle{ages: map[string]int{"Emma": 38}}
		resolver := subjects.NewResolver(gen, oracle, subjects.WithRetryDelay(0))
		svc := service.New(service.WithResolver(resolver))
		So(svc.StartGame(ctx, "sid-1"), ShouldBeNil)
		So(svc.GetStats()["mode"], ShouldEqual, "lazy")

		Convey("When guessing before a subject was drawn", func() {
			_, err := svc.SubmitGuess(ctx, "sid-1", "38")
			So(errors.Is(err, game.ErrNoPendingSubject), ShouldBeTrue)
		})

		Convey("When the round is shown twice", func() {
			first, err := svc.CurrentRound(ctx, "sid-1")
			So(err, ShouldBeNil)
			calls := gen.calls
			second, err := svc.CurrentRound(ctx, "sid-1")
			So(err, ShouldBeNil)

			Convey("Then the same subject is kept", func() {
				So(first.Subject, ShouldEqual, "Emma")
				So(second.Subject, ShouldEqual, "Emma")
				So(gen.calls, ShouldEqual, calls)
			})

			Convey("Then the guess is scored against the resolved age", func() {
				out, err := svc.SubmitGuess(ctx, "sid-1", "38")
				So(err, ShouldBeNil)
				So(out.Record.Score, ShouldEqual, 5000)
				So(out.Record.TrueAge, ShouldEqual, 38)
			})
		})
	})
}

func TestService_StoreFailures(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session store that fails", t, func() {
		svc := newPreselected(service.WithSessionStore(brokenStore{err: errors.New("disk full")}))

		Convey("Then errors surface as persistence failures", func() {
			err := svc.StartGame(ctx, "sid-1")
			So(errors.Is(err, service.ErrPersistence), ShouldBeTrue)

			_, err = svc.CurrentRound(ctx, "sid-1")
			So(errors.Is(err, service.ErrPersistence), ShouldBeTrue)
		})
	})

	Convey("Given a session store that times out", t, func() {
		svc := newPreselected(service.WithSessionStore(brokenStore{err: fmt.Errorf("query: %w", context.DeadlineExceeded)}))

		Convey("Then errors surface as upstream timeouts", func() {
			_, err := svc.CurrentRound(ctx, "sid-1")
			So(errors.Is(err, subjects.ErrUpstreamTimeout), ShouldBeTrue)
		})
	})

	Convey("Given another tab saving between load and save", t, func() {
		svc := newPreselected(service.WithSessionStore(racingStore{sessions.NewMemoryStore()}))
		So(svc.StartGame(ctx, "sid-1"), ShouldBeNil)

		Convey("Then the stale write is rejected", func() {
			_, err := svc.SubmitGuess(ctx, "sid-1", "30")
			So(errors.Is(err, sessions.ErrVersionConflict), ShouldBeTrue)

			round, err := svc.CurrentRound(ctx, "sid-1")
			So(err, ShouldBeNil)
			So(round.Number, ShouldEqual, 1)
		})
	})

	Convey("Given a leaderboard that rejects a game as duplicate", t, func() {
		board := repository.NewTreapStore()
		svc := newPreselected(
			service.WithLeaderboard(board),
			service.WithIDGenerator(func() string { return "game-fixed" }),
		)
		So(board.Append(ctx, types.Entry{Username: "earlier", Score: 1, GameID: "game-fixed"}), ShouldBeNil)
		So(svc.StartGame(ctx, "sid-1"), ShouldBeNil)
		for _, g := range []string{"30", "40", "50", "60", "70"} {
			_, err := svc.SubmitGuess(ctx, "sid-1", g)
			So(err, ShouldBeNil)
		}

		Convey("Then submission reports it as already submitted", func() {
			_, err := svc.SubmitScore(ctx, "sid-1", "ana")
			So(errors.Is(err, service.ErrAlreadySubmitted), ShouldBeTrue)
		})
	})
}

func TestService_Sweep(t *testing.T) {
	ctx := context.Background()

	Convey("Given sessions that outlived their TTL", t, func() {
		now := fixedNow
		clock := func() time.Time { return now }
		store := sessions.NewMemoryStore(sessions.WithTTL(time.Minute), sessions.WithClock(clock))
		svc := newPreselected(service.WithSessionStore(store), service.WithClock(clock))
		So(svc.StartGame(ctx, "sid-1"), ShouldBeNil)
		So(svc.StartGame(ctx, "sid-2"), ShouldBeNil)

		now = now.Add(2 * time.Minute)

		Convey("Then a sweep removes them", func() {
			So(svc.Sweep(ctx), ShouldEqual, 2)
			So(store.Len(), ShouldEqual, 0)
		})
	})
}
