// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/okian/pulseboard/internal/adapters/mq/bus"
	"github.com/okian/pulseboard/internal/domain/types"
	"github.com/okian/pulseboard/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Summaries lists every dashboard without series data.
	Summaries() []types.Dashboard
	// Views lists every dashboard with its series.
	Views() []types.Dashboard
	// DashboardView returns one dashboard with its series.
	DashboardView(name string) (types.Dashboard, bool)
	// Subscribe registers a live event subscriber.
	Subscribe(ctx context.Context) (*bus.Subscription, error)
}

// Server wires HTTP routes for the dashboard API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	dashboardsHandler *DashboardsHandler
	timingsHandler    *TimingsHandler
	streamHandler     *StreamHandler
	proxy             http.Handler
	gzip              bool
	logger            logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		logger:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.statsHandler = NewStatsHandler(statsProvider, s.logger)
	s.dashboardsHandler = NewDashboardsHandler(deps, s.logger)
	s.timingsHandler = NewTimingsHandler(s.logger)
	s.streamHandler = NewStreamHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.Handle("/healthz", s.compress(MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")))
	mux.Handle("/stats", s.compress(MetricsMiddleware(s.statsHandler.HandleStats, "stats")))
	mux.Handle("/metrics.json", s.compress(MetricsMiddleware(s.timingsHandler.HandleTimings, "timings")))
	mux.Handle("/api/dashboards", s.compress(MetricsMiddleware(s.dashboardsHandler.HandleList, "dashboards")))
	mux.Handle("/api/dashboards/", s.compress(MetricsMiddleware(s.dashboardsHandler.HandleGet, "dashboard")))
	mux.HandleFunc("/ws", s.streamHandler.HandleStream)
	if s.proxy != nil {
		mux.Handle("/proxy/", MetricsMiddleware(s.proxy.ServeHTTP, "proxy"))
	}
}

// compress gzips responses for clients that accept it.
func (s *Server) compress(h http.Handler) http.Handler {
	if !s.gzip {
		return h
	}
	return gzhttp.GzipHandler(h)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v before touching the response, so a value that cannot
// be encoded (a non-finite float, say) becomes a 500 instead of a truncated
// 200. The returned error is for the caller to log.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrEncodeResponse, err)
		writeError(w, http.StatusInternalServerError, "encode_failed", ErrEncodeResponse)
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
	return nil
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	_ = writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
