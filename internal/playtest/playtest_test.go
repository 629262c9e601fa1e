package playtest_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ageguess/internal/adapters/http/api"
	"github.com/okian/ageguess/internal/adapters/http/web"
	"github.com/okian/ageguess/internal/adapters/names"
	service "github.com/okian/ageguess/internal/app"
	"github.com/okian/ageguess/internal/playtest"
)

type flatOracle struct{}

func (flatOracle) Age(context.Context, string) (int, error) { return 50, nil }

func newServer() *httptest.Server {
	svc := service.New(service.WithPreselected(names.NewStaticPool(names.WithSeed(7)), flatOracle{}))
	pages, err := web.New(svc)
	So(err, ShouldBeNil)
	router := httprouter.New()
	pages.Register(router)
	api.NewServer(svc, svc, 100).Register(router)
	return httptest.NewServer(router)
}

func TestRun(t *testing.T) {
	Convey("Given a running game server", t, func() {
		ts := newServer()
		defer ts.Close()

		Convey("When bots play several games", func() {
			stats, err := playtest.Run(context.Background(), playtest.Config{
				BaseURL: ts.URL,
				Games:   6,
				Workers: 3,
				TopN:    10,
				Timeout: 5 * time.Second,
				Seed:    42,
			})

			Convey("Then every game completes and the board lists them in order", func() {
				So(err, ShouldBeNil)
				So(stats.GamesStarted, ShouldEqual, 6)
				So(stats.GamesCompleted, ShouldEqual, 6)
				So(stats.GamesFailed, ShouldEqual, 0)
				So(stats.RoundsPlayed, ShouldEqual, 30)
				So(stats.ScoresSubmitted, ShouldEqual, 6)
				So(stats.LeaderboardEntries, ShouldEqual, 6)
			})
		})
	})

	Convey("Given no server", t, func() {
		ts := newServer()
		url := ts.URL
		ts.Close()

		Convey("Then the run fails the health check", func() {
			_, err := playtest.Run(context.Background(), playtest.Config{BaseURL: url, Games: 1, Timeout: time.Second})
			So(errors.Is(err, playtest.ErrUnhealthy), ShouldBeTrue)
		})
	})
}
