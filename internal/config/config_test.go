package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/pulseboard/internal/config"
	"github.com/okian/pulseboard/internal/domain/labels"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.ProxyTimeoutMS, convey.ShouldEqual, 10_000)
			convey.So(cfg.BusBufferSize, convey.ShouldEqual, 256)
			convey.So(cfg.GzipResponses, convey.ShouldBeTrue)
			convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "pulseboard")
			convey.So(cfg.MetricsRefresh(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Dashboards, convey.ShouldBeEmpty)
		})

		convey.Convey("Then the self dashboard polls its own timings through its own proxy", func() {
			self := cfg.SelfDashboard()
			convey.So(self.Name, convey.ShouldEqual, "self")
			convey.So(self.TargetURL, convey.ShouldEqual, "http://localhost:9080/metrics.json")
			convey.So(self.ProxyURLPrefix, convey.ShouldEqual, "http://localhost:9080/proxy/?url=")
			convey.So(self.PollIntervalMS, convey.ShouldEqual, 3000)
			convey.So(self.ShiftAfter, convey.ShouldEqual, 30)
		})
	})
}

func TestConfig_SelfURL(t *testing.T) {
	convey.Convey("Given listen addresses", t, func() {
		cases := map[string]string{
			":9080":          "http://localhost:9080",
			"0.0.0.0:8080":   "http://localhost:8080",
			"127.0.0.1:7000": "http://127.0.0.1:7000",
			"[::]:9090":      "http://localhost:9090",
		}
		for addr, want := range cases {
			cfg := config.New(context.Background())
			cfg.Addr = addr
			convey.So(cfg.SelfURL(), convey.ShouldEqual, want)
		}
	})
}

func TestConfig_LabelTable(t *testing.T) {
	convey.Convey("Given configured labels with dotted metric names", t, func() {
		cfg := config.New(context.Background())
		cfg.Labels = []config.Label{{
			Metric:   "com.qmetric.occupation.server.handlers.ExactOccupationHandler",
			Title:    "Occupation - Exact",
			Duration: "Response time (ms)",
			Rate:     "Throughput (sec)",
		}}

		convey.Convey("When building the lookup table", func() {
			table := cfg.LabelTable()

			convey.Convey("Then names resolve verbatim", func() {
				convey.So(table.Len(), convey.ShouldEqual, 1)
				convey.So(table.Lookup("com.qmetric.occupation.server.handlers.ExactOccupationHandler").Title,
					convey.ShouldEqual, "Occupation - Exact")
				convey.So(table.Lookup("other").Rate, convey.ShouldEqual, labels.DefaultRateCaption)
			})
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configurations that break a rule", t, func() {
		good := func() *config.Config {
			cfg := config.New(context.Background())
			cfg.Dashboards = []config.Dashboard{{Name: "a", TargetURL: "http://a/metrics", PollIntervalMS: 1000}}
			return cfg
		}
		convey.So(good().Validate(), convey.ShouldBeNil)

		breakers := map[string]func(*config.Config){
			"log level":      func(c *config.Config) { c.LogLevel = "loud" },
			"proxy timeout":  func(c *config.Config) { c.ProxyTimeoutMS = 0 },
			"bus buffer":     func(c *config.Config) { c.BusBufferSize = -1 },
			"metrics prefix": func(c *config.Config) { c.MetricsNamespace = "pulse-board" },
			"empty prefix":   func(c *config.Config) { c.MetricsNamespace = "" },
			"zero refresh":   func(c *config.Config) { c.MetricsRefreshMS = 0 },
			"missing name":   func(c *config.Config) { c.Dashboards[0].Name = "" },
			"relative url":   func(c *config.Config) { c.Dashboards[0].TargetURL = "/metrics" },
			"bad proxy":      func(c *config.Config) { c.Dashboards[0].ProxyURLPrefix = "proxy/?url=" },
			"zero interval":  func(c *config.Config) { c.Dashboards[0].PollIntervalMS = 0 },
			"negative shift": func(c *config.Config) { c.Dashboards[0].ShiftAfter = -1 },
			"duplicate": func(c *config.Config) {
				c.Dashboards = append(c.Dashboards, c.Dashboards[0])
			},
			"unnamed label": func(c *config.Config) { c.Labels = []config.Label{{Title: "x"}} },
		}
		for name, breaker := range breakers {
			cfg := good()
			breaker(cfg)
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(name, convey.ShouldNotBeEmpty)
		}
	})
}
