package scoring_test

import (
	"errors"
	"math"
	"testing"

	scoring "github.com/okian/ageguess/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLinear_Score(t *testing.T) {
	Convey("Given the default linear scorer", t, func() {
		s := scoring.NewLinear()

		Convey("When the guess is exact", func() {
			Convey("Then it scores the maximum", func() {
				So(s.Score(30, 30), ShouldEqual, 5000)
			})
		})

		Convey("When the guess is 25 years off", func() {
			Convey("Then it scores half", func() {
				So(s.Score(30, 55), ShouldEqual, 2500)
				So(s.Score(30, 5), ShouldEqual, 2500)
			})
		})

		Convey("When the guess is at or beyond the zero distance", func() {
			Convey("Then it scores nothing", func() {
				So(s.Score(30, 100), ShouldEqual, 0)
				So(s.Score(30, 80), ShouldEqual, 0)
				So(s.Score(30, -20), ShouldEqual, 0)
			})
		})

		Convey("When the guess is fractional", func() {
			Convey("Then the score is rounded to an integer", func() {
				// diff 0.5 -> 5000 * 0.99 = 4950
				So(s.Score(40, 40.5), ShouldEqual, 4950)
				// diff 0.01 -> 4999
				So(s.Score(40, 40.01), ShouldEqual, 4999)
			})
		})

		Convey("When the guess is negative but within range", func() {
			Convey("Then the formula extrapolates", func() {
				So(s.Score(10, -10), ShouldEqual, 3000)
			})
		})

		Convey("When the guess is NaN", func() {
			Convey("Then it scores nothing", func() {
				So(s.Score(10, math.NaN()), ShouldEqual, 0)
			})
		})

		Convey("When scoring every distance in range", func() {
			Convey("Then the score never increases with the distance", func() {
				prev := s.Score(50, 50)
				for d := 0.25; d <= 60; d += 0.25 {
					cur := s.Score(50, 50+d)
					So(cur, ShouldBeLessThanOrEqualTo, prev)
					if d >= s.MaxDiff() {
						So(cur, ShouldEqual, 0)
					}
					prev = cur
				}
			})
		})
	})

	Convey("Given a scorer with a tighter decay", t, func() {
		s := scoring.NewLinear(scoring.WithMaxDiff(25), scoring.WithMaxScore(1000))

		Convey("Then the constants are applied", func() {
			So(s.MaxDiff(), ShouldEqual, 25)
			So(s.MaxScore(), ShouldEqual, 1000)
			So(s.Score(30, 30), ShouldEqual, 1000)
			So(s.Score(30, 40), ShouldEqual, 600)
			So(s.Score(30, 55), ShouldEqual, 0)
		})

		Convey("And non-positive options are ignored", func() {
			d := scoring.NewLinear(scoring.WithMaxDiff(0), scoring.WithMaxScore(-1))
			So(d.MaxDiff(), ShouldEqual, scoring.DefaultMaxDiff)
			So(d.MaxScore(), ShouldEqual, scoring.DefaultMaxScore)
		})
	})

	Convey("The package-level Score uses the defaults", t, func() {
		So(scoring.Score(30, 55), ShouldEqual, 2500)
	})
}

func TestParseGuess(t *testing.T) {
	Convey("Given raw form values", t, func() {
		Convey("When the value is numeric", func() {
			for raw, want := range map[string]float64{
				"42":    42,
				" 17 ":  17,
				"-3":    -3,
				"33.75": 33.75,
				"1e1":   10,
			} {
				v, err := scoring.ParseGuess(raw)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, want)
			}
		})

		Convey("When the value is not a finite number", func() {
			for _, raw := range []string{"", "   ", "abc", "12abc", "NaN", "Inf", "-Infinity"} {
				_, err := scoring.ParseGuess(raw)
				So(err, ShouldNotBeNil)
				So(errors.Is(err, scoring.ErrMalformedGuess), ShouldBeTrue)
			}
		})
	})
}
