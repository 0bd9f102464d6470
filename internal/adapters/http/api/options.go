package api

import (
	"net/http"

	"github.com/okian/pulseboard/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithProxy mounts h at /proxy/.
func WithProxy(h http.Handler) Option {
	return func(s *Server) {
		s.proxy = h
	}
}

// WithGzip enables response compression on JSON routes.
func WithGzip(enabled bool) Option {
	return func(s *Server) {
		s.gzip = enabled
	}
}

// WithLogger sets the logger used by the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
