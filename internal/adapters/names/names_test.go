package names_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/ageguess/internal/adapters/names"
	"github.com/okian/ageguess/internal/adapters/sqlite"
	"github.com/okian/ageguess/internal/domain/subjects"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseList(t *testing.T) {
	Convey("Given a names file", t, func() {
		Convey("When it has comments, blanks and duplicates", func() {
			list, err := names.ParseList(strings.NewReader("# header\nana\n\n  BEN \nAna\ncleo\n"))

			Convey("Then only distinct normalized names remain", func() {
				So(err, ShouldBeNil)
				So(list, ShouldResemble, []string{"Ana", "Ben", "Cleo"})
			})
		})

		Convey("When it has no names", func() {
			_, err := names.ParseList(strings.NewReader("\n# nothing\n"))
			So(errors.Is(err, names.ErrNoNames), ShouldBeTrue)
		})

		Convey("When loading from disk", func() {
			path := filepath.Join(t.TempDir(), "names.txt")
			So(os.WriteFile(path, []byte("maria\njohn\n"), 0o600), ShouldBeNil)

			list, err := names.LoadFile(path)
			So(err, ShouldBeNil)
			So(list, ShouldResemble, []string{"Maria", "John"})

			_, err = names.LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
			So(err, ShouldNotBeNil)
		})
	})

	Convey("The embedded list has a few hundred distinct names", t, func() {
		So(len(names.Builtin()), ShouldBeGreaterThan, 300)
	})
}

func TestStaticPool(t *testing.T) {
	ctx := context.Background()

	Convey("Given a static pool", t, func() {
		pool := names.NewStaticPool(names.WithSeed(7))

		Convey("When sampling five names", func() {
			list, err := subjects.SamplePool(ctx, pool, 5)

			Convey("Then they are distinct members of the list", func() {
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 5)
				all := names.Builtin()
				for _, n := range list {
					So(all, ShouldContain, n)
				}
			})
		})

		Convey("When repeated with the same seed", func() {
			a, _ := names.NewStaticPool(names.WithSeed(42)).Sample(ctx, 5)
			b, _ := names.NewStaticPool(names.WithSeed(42)).Sample(ctx, 5)
			So(a, ShouldResemble, b)
		})

		Convey("When the list is smaller than the sample", func() {
			small := names.NewStaticPool(names.WithNames([]string{"Ana", "Ben"}))
			_, err := small.Sample(ctx, 5)
			So(errors.Is(err, subjects.ErrEmptyPool), ShouldBeTrue)
		})

		Convey("When drawing one name at a time", func() {
			small := names.NewStaticPool(names.WithNames([]string{"Ana"}))
			name, err := small.Next(ctx)
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "Ana")
		})
	})
}

func TestFakerGenerator(t *testing.T) {
	Convey("Given a faker generator", t, func() {
		gen := names.NewFakerGenerator(1)

		Convey("Then it produces non-empty names", func() {
			for i := 0; i < 20; i++ {
				name, err := gen.Next(context.Background())
				So(err, ShouldBeNil)
				So(strings.TrimSpace(name), ShouldNotBeEmpty)
			}
		})

		Convey("Then a cancelled context stops it", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := gen.Next(ctx)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestStorePool(t *testing.T) {
	ctx := context.Background()

	Convey("Given a SQLite names table", t, func() {
		db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "names.db"))
		So(err, ShouldBeNil)
		defer db.Close()
		pool := names.NewStorePool(db)

		Convey("When seeding it twice", func() {
			added, err := pool.Seed(ctx, []string{"Ana", "Ben", "Cleo", "Dana", "Eli", "Fay"})
			So(err, ShouldBeNil)
			So(added, ShouldEqual, 6)

			added, err = pool.Seed(ctx, []string{"Ana", "Gus"})
			So(err, ShouldBeNil)
			So(added, ShouldEqual, 1)

			Convey("Then samples are distinct stored names", func() {
				count, err := pool.Count(ctx)
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 7)

				list, err := subjects.SamplePool(ctx, pool, 5)
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 5)

				name, err := pool.Next(ctx)
				So(err, ShouldBeNil)
				So(name, ShouldNotBeEmpty)
			})
		})

		Convey("When it is empty", func() {
			_, err := subjects.SamplePool(ctx, pool, 5)
			So(errors.Is(err, subjects.ErrEmptyPool), ShouldBeTrue)

			_, err = pool.Next(ctx)
			So(errors.Is(err, names.ErrNoNames), ShouldBeTrue)
		})
	})
}
