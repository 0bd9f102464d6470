// Package proxy relays GET requests to arbitrary metrics endpoints so that
// the dashboard page can read cross-origin JSON from its own origin.
//
//	GET /proxy/?url=<escaped target>
//
// The upstream body is returned verbatim as application/json with the
// upstream status code. Transport failures answer 502 with an empty body.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/pulseboard/internal/adapters/fetch"
	"github.com/okian/pulseboard/pkg/logger"
	"github.com/okian/pulseboard/pkg/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	defaultMaxBody = 8 << 20
)

// Handler is the proxy endpoint.
type Handler struct {
	client  *http.Client
	timeout time.Duration
	maxBody int64
	allowed map[string]struct{}
	logger  logger.Logger
}

// New creates a proxy handler.
func New(opts ...Option) *Handler {
	h := &Handler{
		client:  &http.Client{},
		timeout: defaultTimeout,
		maxBody: defaultMaxBody,
		allowed: make(map[string]struct{}),
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	setNoCache(w.Header())

	target, err := h.target(r.URL.Query().Get("url"))
	if err != nil {
		metrics.RecordProxyRequest("rejected")
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		metrics.RecordProxyRequest("rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if id := r.Header.Get(fetch.RequestIDHeader); id != "" {
		req.Header.Set(fetch.RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	metrics.RecordProxyLatency(time.Since(start))
	if err != nil {
		metrics.RecordProxyRequest("upstream_error")
		h.logger.Warn(r.Context(), "upstream request failed",
			logger.String("target", target.Redacted()),
			logger.Error(err),
		)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	metrics.RecordProxyRequest(outcome(resp.StatusCode))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, io.LimitReader(resp.Body, h.maxBody)); err != nil {
		h.logger.Debug(r.Context(), "relaying body aborted", logger.Error(err))
	}
}

func (h *Handler) target(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if len(h.allowed) > 0 {
		_, hostOK := h.allowed[strings.ToLower(u.Hostname())]
		_, hostPortOK := h.allowed[strings.ToLower(u.Host)]
		if !hostOK && !hostPortOK {
			return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Host)
		}
	}
	return u, nil
}

func setNoCache(h http.Header) {
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

func statusFor(err error) int {
	if errors.Is(err, ErrHostNotAllowed) {
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}

func outcome(status int) string {
	switch {
	case status >= 200 && status <= 299:
		return "ok"
	case status >= 500:
		return "upstream_5xx"
	case status >= 400:
		return "upstream_4xx"
	default:
		return "upstream_other"
	}
}
