package service

import "errors"

var (
	// ErrInvalidDashboard is returned for a dashboard configuration that cannot be polled.
	ErrInvalidDashboard = errors.New("invalid dashboard")
	// ErrDuplicateDashboard is returned when two dashboards share a name.
	ErrDuplicateDashboard = errors.New("duplicate dashboard")
	// ErrInvalidInterval is returned when starting a poller without a positive interval.
	ErrInvalidInterval = errors.New("poll interval must be positive")
	// ErrPolling is returned by operations that need an idle dashboard.
	ErrPolling = errors.New("dashboard is polling")
	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")
)
