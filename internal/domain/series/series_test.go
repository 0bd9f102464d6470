package series_test

import (
	"testing"
	"time"

	"github.com/okian/pulseboard/internal/domain/series"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistryAppend(t *testing.T) {
	Convey("Given an empty registry", t, func() {
		reg := series.NewRegistry()
		t0 := time.Unix(1_700_000_000, 0)

		Convey("When a metric is seen for the first time", func() {
			s := reg.Append("svcA", t0, 12.5, 0.8)

			Convey("Then exactly one pair is created and seeded", func() {
				So(s.Seeded, ShouldBeTrue)
				So(s.Samples, ShouldEqual, uint64(1))
				So(reg.Len(), ShouldEqual, 1)
				So(reg.Has("svcA"), ShouldBeTrue)

				v, ok := reg.View("svcA")
				So(ok, ShouldBeTrue)
				So(v.Duration, ShouldResemble, []series.Point{{At: t0, Value: 12.5}})
				So(v.Rate, ShouldResemble, []series.Point{{At: t0, Value: 0.8}})
			})
		})

		Convey("When the same metric is appended N times", func() {
			for i := 0; i < 5; i++ {
				reg.Append("svcA", t0.Add(time.Duration(i)*time.Second), float64(i), 1)
			}

			Convey("Then the pair holds N points in time order", func() {
				v, _ := reg.View("svcA")
				So(v.Samples, ShouldEqual, uint64(5))
				So(v.Duration, ShouldHaveLength, 5)
				So(v.Rate, ShouldHaveLength, 5)
				for i := 1; i < len(v.Duration); i++ {
					So(v.Duration[i].At.Before(v.Duration[i-1].At), ShouldBeFalse)
				}
				So(reg.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the clock steps backwards", func() {
			reg.Append("svcA", t0, 1, 1)
			s := reg.Append("svcA", t0.Add(-time.Minute), 2, 2)

			Convey("Then the new point is clamped to the previous timestamp", func() {
				So(s.At, ShouldEqual, t0)
				v, _ := reg.View("svcA")
				So(v.Duration[1].At, ShouldEqual, t0)
				So(v.Rate[1].At, ShouldEqual, t0)
			})
		})

		Convey("When several metrics are tracked", func() {
			reg.Append("svcB", t0, 1, 1)
			reg.Append("svcA", t0, 1, 1)

			Convey("Then names and views are sorted", func() {
				So(reg.Names(), ShouldResemble, []string{"svcA", "svcB"})
				views := reg.Views()
				So(views, ShouldHaveLength, 2)
				So(views[0].Name, ShouldEqual, "svcA")
				So(views[1].Name, ShouldEqual, "svcB")
			})
		})

		Convey("When looking up an unknown metric", func() {
			_, ok := reg.View("nope")

			Convey("Then it is reported missing", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestRegistryRetention(t *testing.T) {
	Convey("Given a registry retaining three points", t, func() {
		reg := series.NewRegistry(series.WithRetention(3))
		t0 := time.Unix(1_700_000_000, 0)

		Convey("When five samples are appended", func() {
			for i := 0; i < 5; i++ {
				reg.Append("svcA", t0.Add(time.Duration(i)*time.Second), float64(i), float64(i))
			}

			Convey("Then only the newest three points remain but the counter keeps counting", func() {
				v, _ := reg.View("svcA")
				So(v.Samples, ShouldEqual, uint64(5))
				So(v.Duration, ShouldHaveLength, 3)
				So(v.Duration[0].Value, ShouldEqual, 2.0)
				So(v.Rate[2].Value, ShouldEqual, 4.0)
			})
		})
	})

	Convey("Given a registry with unbounded retention", t, func() {
		reg := series.NewRegistry(series.WithRetention(0))

		Convey("When many samples are appended", func() {
			for i := 0; i < series.DefaultRetention+10; i++ {
				reg.Append("svcA", time.Unix(int64(i), 0), 1, 1)
			}

			Convey("Then nothing is trimmed", func() {
				v, _ := reg.View("svcA")
				So(v.Duration, ShouldHaveLength, series.DefaultRetention+10)
			})
		})
	})
}

func TestViewIsolation(t *testing.T) {
	Convey("Given a view of a pair", t, func() {
		reg := series.NewRegistry()
		reg.Append("svcA", time.Unix(1, 0), 1, 1)
		v, _ := reg.View("svcA")

		Convey("When the registry keeps changing", func() {
			reg.Append("svcA", time.Unix(2, 0), 2, 2)

			Convey("Then the earlier view is unaffected", func() {
				So(v.Duration, ShouldHaveLength, 1)
				So(v.Samples, ShouldEqual, uint64(1))
			})
		})
	})
}
