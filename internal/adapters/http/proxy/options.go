package proxy

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/pulseboard/pkg/logger"
)

// Option applies a configuration option to the Handler.
type Option func(*Handler)

// WithTimeout bounds each upstream request.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithAllowedHosts restricts targets to the given hosts (host or host:port).
// An empty list allows every host.
func WithAllowedHosts(hosts []string) Option {
	return func(h *Handler) {
		for _, host := range hosts {
			host = strings.ToLower(strings.TrimSpace(host))
			if host != "" {
				h.allowed[host] = struct{}{}
			}
		}
	}
}

// WithHTTPClient sets the upstream HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(h *Handler) {
		if hc != nil {
			h.client = hc
		}
	}
}

// WithMaxBodyBytes caps the relayed body size.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}
