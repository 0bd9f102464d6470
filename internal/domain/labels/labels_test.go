package labels_test

import (
	"testing"

	"github.com/okian/pulseboard/internal/domain/labels"
	"github.com/smartystreets/goconvey/convey"
)

func TestTableLookup(t *testing.T) {
	convey.Convey("Given a label table", t, func() {
		entries := map[string]labels.Label{
			"com.example.handlers.ExactHandler": {Title: "Occupation - Exact", Duration: "Latency", Rate: "Req/s"},
			"partial":                           {Title: "Partial"},
		}
		table := labels.NewTable(entries)

		convey.Convey("When looking up a configured metric", func() {
			l := table.Lookup("com.example.handlers.ExactHandler")

			convey.Convey("Then the configured captions are returned", func() {
				convey.So(l, convey.ShouldResemble, labels.Label{Title: "Occupation - Exact", Duration: "Latency", Rate: "Req/s"})
			})
		})

		convey.Convey("When a configured metric leaves captions blank", func() {
			l := table.Lookup("partial")

			convey.Convey("Then the default captions fill in", func() {
				convey.So(l.Title, convey.ShouldEqual, "Partial")
				convey.So(l.Duration, convey.ShouldEqual, labels.DefaultDurationCaption)
				convey.So(l.Rate, convey.ShouldEqual, labels.DefaultRateCaption)
			})
		})

		convey.Convey("When looking up an unknown metric", func() {
			l := table.Lookup("svcA")

			convey.Convey("Then the raw name is the title", func() {
				convey.So(l.Title, convey.ShouldEqual, "svcA")
				convey.So(l.Duration, convey.ShouldEqual, labels.DefaultDurationCaption)
			})
		})

		convey.Convey("When the source map changes after construction", func() {
			entries["late"] = labels.Label{Title: "Late"}

			convey.Convey("Then the table is unaffected", func() {
				convey.So(table.Lookup("late").Title, convey.ShouldEqual, "late")
				convey.So(table.Len(), convey.ShouldEqual, 2)
			})
		})
	})

	convey.Convey("Given a nil table", t, func() {
		var table *labels.Table

		convey.Convey("Then lookups still fall back", func() {
			convey.So(table.Lookup("x").Title, convey.ShouldEqual, "x")
			convey.So(table.Len(), convey.ShouldEqual, 0)
		})
	})
}
