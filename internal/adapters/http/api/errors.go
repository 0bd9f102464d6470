package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest        = errors.New("bad request")
	ErrDashboardNotFound = errors.New("dashboard not found")
	ErrStreamUnavailable = errors.New("live stream unavailable")
	ErrEncodeResponse    = errors.New("response encoding failed")
)
