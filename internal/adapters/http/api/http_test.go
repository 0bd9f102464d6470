package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/pulseboard/internal/adapters/http/api"
	"github.com/okian/pulseboard/internal/adapters/mq/bus"
	"github.com/okian/pulseboard/internal/domain/model"
	"github.com/okian/pulseboard/internal/domain/snapshot"
	"github.com/okian/pulseboard/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	dashboards []types.Dashboard
	bus        *bus.Bus
}

func newMockDependencies(n int) *mockDependencies {
	m := &mockDependencies{bus: bus.New()}
	for i := 0; i < n; i++ {
		m.dashboards = append(m.dashboards, types.Dashboard{
			Name:           fmt.Sprintf("dash-%02d", i),
			TargetURL:      fmt.Sprintf("http://localhost:46%02d/metrics", i),
			State:          "polling",
			PollIntervalMS: 3000,
			ShiftAfter:     30,
			Metrics:        []string{"svcA"},
			Series: []types.Series{{
				Metric:   "svcA",
				Title:    "Service A",
				Samples:  1,
				Duration: []types.Point{{TS: 1000, Value: 12.5}},
				Rate:     []types.Point{{TS: 1000, Value: 0.8}},
			}},
		})
	}
	return m
}

func (m *mockDependencies) Summaries() []types.Dashboard {
	out := make([]types.Dashboard, len(m.dashboards))
	for i, d := range m.dashboards {
		d.Series = nil
		out[i] = d
	}
	return out
}

func (m *mockDependencies) Views() []types.Dashboard { return m.dashboards }

func (m *mockDependencies) DashboardView(name string) (types.Dashboard, bool) {
	for _, d := range m.dashboards {
		if d.Name == name {
			return d, true
		}
	}
	return types.Dashboard{}, false
}

func (m *mockDependencies) Subscribe(ctx context.Context) (*bus.Subscription, error) {
	return m.bus.Subscribe(ctx)
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, opts...)
	server.Register(context.Background(), mux)
	return mux
}

func get(mux http.Handler, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMockDependencies(2)
		mux := newMux(deps)

		Convey("Then the health endpoint serves Prometheus metrics", func() {
			w := get(mux, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "pulseboard_")
		})

		Convey("Then the stats endpoint returns JSON", func() {
			w := get(mux, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")

			var body map[string]interface{}
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["started"], ShouldEqual, true)
		})

		Convey("Then the dashboard list omits series by default", func() {
			w := get(mux, "/api/dashboards")
			So(w.Code, ShouldEqual, http.StatusOK)

			var body struct {
				Dashboards []types.Dashboard `json:"dashboards"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(len(body.Dashboards), ShouldEqual, 2)
			So(body.Dashboards[0].Series, ShouldBeNil)
		})

		Convey("Then the dashboard list includes series on request", func() {
			w := get(mux, "/api/dashboards?series=true")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"series"`)
		})

		Convey("Then a known dashboard is returned with its series", func() {
			w := get(mux, "/api/dashboards/dash-01")
			So(w.Code, ShouldEqual, http.StatusOK)

			var view types.Dashboard
			So(json.Unmarshal(w.Body.Bytes(), &view), ShouldBeNil)
			So(view.Name, ShouldEqual, "dash-01")
			So(view.Series[0].Duration[0].Value, ShouldEqual, 12.5)
		})

		Convey("Then an unknown dashboard is 404", func() {
			w := get(mux, "/api/dashboards/nope")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(w.Body.String(), ShouldContainSubstring, "not_found")
		})

		Convey("Then a missing dashboard name is 400", func() {
			w := get(mux, "/api/dashboards/")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, api.ErrBadRequest.Error())
		})

		Convey("Then writes to dashboards are refused", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/dashboards", strings.NewReader("{}"))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then the proxy is not mounted unless configured", func() {
			w := get(mux, "/proxy/?url=http://example.invalid")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_UnencodableValues(t *testing.T) {
	Convey("Given a dashboard holding a non-finite sample", t, func() {
		deps := newMockDependencies(1)
		deps.dashboards[0].Series[0].Duration = []types.Point{{TS: 1000, Value: math.Inf(1)}}
		mux := newMux(deps)

		Convey("When the dashboard is requested", func() {
			w := get(mux, "/api/dashboards/dash-00")

			Convey("Then the response is a well-formed 500", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)

				var body struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Code, ShouldEqual, "encode_failed")
				So(body.Message, ShouldEqual, api.ErrEncodeResponse.Error())
			})
		})

		Convey("When the full list is requested", func() {
			w := get(mux, "/api/dashboards?series=true")

			Convey("Then it fails the same way", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldContainSubstring, "encode_failed")
			})
		})

		Convey("When only summaries are requested", func() {
			w := get(mux, "/api/dashboards")

			Convey("Then they still encode", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestServer_Timings(t *testing.T) {
	Convey("Given a server that has served a few requests", t, func() {
		mux := newMux(newMockDependencies(1))
		for i := 0; i < 3; i++ {
			So(get(mux, "/stats").Code, ShouldEqual, http.StatusOK)
		}

		Convey("When reading /metrics.json", func() {
			w := get(mux, "/metrics.json")

			Convey("Then it decodes as a dashboard snapshot naming the handlers", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				snap, err := snapshot.Decode(w.Body.Bytes())
				So(err, ShouldBeNil)
				So(snap, ShouldContainKey, "stats")
				So(snap["stats"].RateMean, ShouldBeGreaterThan, 0)
				So(snap["stats"].DurationMean, ShouldBeGreaterThanOrEqualTo, 0)
			})
		})
	})
}

func TestServer_Options(t *testing.T) {
	Convey("Given a server with gzip and a proxy", t, func() {
		proxied := false
		proxy := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			proxied = true
			w.WriteHeader(http.StatusTeapot)
		})
		mux := newMux(newMockDependencies(40), api.WithGzip(true), api.WithProxy(proxy))

		Convey("When a client accepts gzip", func() {
			w := get(mux, "/api/dashboards", "Accept-Encoding", "gzip")

			Convey("Then large responses are compressed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Encoding"), ShouldEqual, "gzip")
			})
		})

		Convey("When a client does not accept gzip", func() {
			w := get(mux, "/api/dashboards")

			Convey("Then the response is plain", func() {
				So(w.Header().Get("Content-Encoding"), ShouldBeEmpty)
				So(w.Body.String(), ShouldContainSubstring, "dash-39")
			})
		})

		Convey("When the proxy route is requested", func() {
			w := get(mux, "/proxy/?url=http://example.invalid")

			Convey("Then the configured proxy handles it", func() {
				So(proxied, ShouldBeTrue)
				So(w.Code, ShouldEqual, http.StatusTeapot)
			})
		})
	})
}

func TestServer_Stream(t *testing.T) {
	Convey("Given a live API server", t, func() {
		deps := newMockDependencies(2)
		srv := httptest.NewServer(newMux(deps))
		defer srv.Close()
		defer func() { _ = deps.bus.Close() }()
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

		read := func(conn *websocket.Conn) (map[string]json.RawMessage, error) {
			_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
			var msg map[string]json.RawMessage
			err := conn.ReadJSON(&msg)
			return msg, err
		}

		Convey("When a browser connects", func() {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			So(err, ShouldBeNil)
			defer conn.Close()

			Convey("Then it first receives every dashboard view", func() {
				msg, err := read(conn)
				So(err, ShouldBeNil)
				So(string(msg["type"]), ShouldEqual, `"init"`)

				var payload api.InitPayload
				So(json.Unmarshal(msg["payload"], &payload), ShouldBeNil)
				So(len(payload.Dashboards), ShouldEqual, 2)
				So(payload.Dashboards[1].Series[0].Metric, ShouldEqual, "svcA")
			})

			Convey("Then published events follow", func() {
				_, err := read(conn)
				So(err, ShouldBeNil)
				So(waitForSubscribers(deps.bus, 1), ShouldBeTrue)

				deps.bus.Publish(context.Background(), model.Event{
					Kind: model.KindUpdate, Dashboard: "dash-00", Seq: 7, Metric: "svcA", Duration: 3, Rate: 4, Shift: true,
				})
				msg, err := read(conn)
				So(err, ShouldBeNil)
				So(string(msg["type"]), ShouldEqual, `"update"`)

				var e model.Event
				So(json.Unmarshal(msg["payload"], &e), ShouldBeNil)
				So(e.Seq, ShouldEqual, uint64(7))
				So(e.Shift, ShouldBeTrue)
			})
		})

		Convey("When a browser follows one dashboard", func() {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?dashboard=dash-01", nil)
			So(err, ShouldBeNil)
			defer conn.Close()

			Convey("Then only that dashboard is streamed", func() {
				msg, err := read(conn)
				So(err, ShouldBeNil)
				var payload api.InitPayload
				So(json.Unmarshal(msg["payload"], &payload), ShouldBeNil)
				So(len(payload.Dashboards), ShouldEqual, 1)

				So(waitForSubscribers(deps.bus, 1), ShouldBeTrue)
				deps.bus.Publish(context.Background(), model.Event{Kind: model.KindUpdate, Dashboard: "dash-00", Seq: 1})
				deps.bus.Publish(context.Background(), model.Event{Kind: model.KindError, Dashboard: "dash-01", Seq: 2, ErrorKind: "transport"})

				msg, err = read(conn)
				So(err, ShouldBeNil)
				So(string(msg["type"]), ShouldEqual, `"error"`)
			})
		})

		Convey("When a browser asks for an unknown dashboard", func() {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?dashboard=nope", nil)

			Convey("Then the upgrade is refused with 404", func() {
				So(err, ShouldNotBeNil)
				So(resp, ShouldNotBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
			})
		})
	})
}

func waitForSubscribers(b *bus.Bus, n int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.Len() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
