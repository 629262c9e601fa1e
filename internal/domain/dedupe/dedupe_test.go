package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/ageguess/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should start empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording games", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the game is new", func() {
				seen := d.SeenAndRecord(ctx, "game-1")

				Convey("Then it should return false and record the game", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the game was already submitted", func() {
				d.SeenAndRecord(ctx, "game-1")
				seen := d.SeenAndRecord(ctx, "game-1")

				Convey("Then it should return true", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When unrecording a game", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "game-1")
			d.Unrecord(ctx, "game-1")
			d.Unrecord(ctx, "missing")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "game-1"), ShouldBeFalse)
			})
		})

		Convey("When using bounded mode with eviction", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, id := range []string{"game-1", "game-2", "game-3", "game-4"} {
				So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
			}

			Convey("Then the oldest game is forgotten first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "game-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "game-3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "game-2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "game-1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When unrecording in bounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			d.SeenAndRecord(ctx, "game-1")
			d.SeenAndRecord(ctx, "game-2")
			d.Unrecord(ctx, "game-1")
			d.SeenAndRecord(ctx, "game-3")

			Convey("Then the freed slot is reused without eviction", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "game-2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "game-3"), ShouldBeTrue)
			})
		})

		Convey("When using unbounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))
			const numGames = 1000
			for i := 0; i < numGames; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("game-%d", i)), ShouldBeFalse)
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, int64(numGames))
				So(d.SeenAndRecord(ctx, "game-0"), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const numGoroutines = 10
		const gamesPerGoroutine = 100

		Convey("When the same games are submitted from many goroutines", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < gamesPerGoroutine; j++ {
						if !d.SeenAndRecord(context.Background(), fmt.Sprintf("game-%d", j)) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each game is accepted exactly once", func() {
				So(fresh, ShouldEqual, gamesPerGoroutine)
				So(d.Size(), ShouldEqual, int64(gamesPerGoroutine))
			})
		})
	})
}
