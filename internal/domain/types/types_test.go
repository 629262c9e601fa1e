package types_test

import (
	"encoding/json"
	"testing"
	"time"

	types "github.com/okian/ageguess/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry(t *testing.T) {
	Convey("Given an Entry struct", t, func() {
		playedAt := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
		entry := types.Entry{
			Rank:     1,
			Username: "ana",
			Score:    4200,
			GameID:   "game-1",
			PlayedAt: playedAt,
		}

		Convey("When encoding it as JSON", func() {
			data, err := json.Marshal(entry)
			So(err, ShouldBeNil)

			Convey("Then the game id stays private", func() {
				s := string(data)
				So(s, ShouldContainSubstring, `"username":"ana"`)
				So(s, ShouldContainSubstring, `"score":4200`)
				So(s, ShouldContainSubstring, `"rank":1`)
				So(s, ShouldNotContainSubstring, "game-1")
			})
		})

		Convey("When creating an entry with zero values", func() {
			entry := types.Entry{}

			Convey("Then it should have default values", func() {
				So(entry.Rank, ShouldEqual, 0)
				So(entry.Username, ShouldEqual, "")
				So(entry.Score, ShouldEqual, 0)
				So(entry.PlayedAt.IsZero(), ShouldBeTrue)
			})
		})
	})
}
