package proxy_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/okian/pulseboard/internal/adapters/http/proxy"
	. "github.com/smartystreets/goconvey/convey"
)

func TestProxy(t *testing.T) {
	Convey("Given an upstream and a proxy handler", t, func() {
		status := http.StatusOK
		body := `{"svcA":{"timer":{"duration":{"mean":1},"rate":{"mean":2}}}}`
		var gotRequestID string
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotRequestID = r.Header.Get("X-Request-ID")
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
		defer upstream.Close()

		h := proxy.New(proxy.WithTimeout(time.Second))
		get := func(target string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, "/proxy/?url="+url.QueryEscape(target), http.NoBody)
			req.Header.Set("X-Request-ID", "req-1")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w
		}

		Convey("When relaying a healthy endpoint", func() {
			w := get(upstream.URL + "/metrics")

			Convey("Then the body is passed through as JSON with no-cache headers", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldEqual, body)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json")
				So(w.Header().Get("Cache-Control"), ShouldContainSubstring, "no-cache")
				So(w.Header().Get("Pragma"), ShouldEqual, "no-cache")
				So(gotRequestID, ShouldEqual, "req-1")
			})
		})

		Convey("When the upstream fails with a status", func() {
			status = http.StatusInternalServerError
			body = "boom"
			w := get(upstream.URL)

			Convey("Then the status and body are passed through", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldEqual, "boom")
			})
		})

		Convey("When the url parameter is missing", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/proxy/", http.NoBody))

			Convey("Then the request is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the url is not http", func() {
			w := get("file:///etc/passwd")

			Convey("Then the request is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the method is not GET", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/proxy/?url=x", strings.NewReader("{}")))

			Convey("Then it is refused", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})

	Convey("Given a dead upstream", t, func() {
		dead := httptest.NewServer(http.NotFoundHandler())
		target := dead.URL
		dead.Close()
		h := proxy.New()

		Convey("When relaying", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/proxy/?url="+url.QueryEscape(target), http.NoBody))

			Convey("Then 502 with an empty body is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadGateway)
				So(w.Body.Len(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a proxy with an allow-list", t, func() {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer upstream.Close()
		u, _ := url.Parse(upstream.URL)
		h := proxy.New(proxy.WithAllowedHosts([]string{" " + u.Host + " "}))

		Convey("When the target host is listed", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/proxy/?url="+url.QueryEscape(upstream.URL), http.NoBody))

			Convey("Then it is relayed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the target host is not listed", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/proxy/?url="+url.QueryEscape("http://example.invalid/metrics"), http.NoBody))

			Convey("Then it is forbidden", func() {
				So(w.Code, ShouldEqual, http.StatusForbidden)
			})
		})
	})
}
