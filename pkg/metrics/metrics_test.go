package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.gamesStarted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_games_started_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When a game is played to completion", func() {
			before := testutil.ToFloat64(globalManager.gamesCompleted)
			rounds := testutil.ToFloat64(globalManager.roundsPlayed)

			RecordGameStarted()
			for i := 0; i < 5; i++ {
				RecordRound(1000)
			}
			RecordGameCompleted(5000)

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.gamesCompleted), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.roundsPlayed), ShouldEqual, rounds+5)
			})
		})

		Convey("When recording labelled metrics", func() {
			So(func() {
				RecordOracleLatency(42)
				RecordOracleError("timeout")
				RecordResolveRetry()
				RecordSubjectReplaced()
				RecordSessionConflict()
				RecordSessionsSwept(3)
				RecordLeaderboardSubmit()
				RecordLeaderboardDuplicate()
				RecordStoreError("session", "timeout")
				UpdateLiveSubscribers(2)
				RecordHTTPRequest("guess", "POST", "303")
				RecordHTTPRequestDuration("guess", "POST", "303", 12)
				RecordErrorByEndpoint("guess", "POST", "client_error")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)

			Convey("Then they are exposed by the custom registry", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				joined := strings.Join(names, ",")
				So(joined, ShouldContainSubstring, "ageguess_game_oracle_errors_total")
				So(joined, ShouldContainSubstring, "ageguess_system_goroutines")
			})
		})
	})
}
