// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Slice-valued settings (dashboards, labels) get their defaults after
//   loading, only when nothing was configured.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/okian/pulseboard/internal/domain/labels"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ProxyTimeoutMS bounds one upstream request made by /proxy/.
	ProxyTimeoutMS int `koanf:"proxy_timeout_ms"`

	// ProxyAllowedHosts restricts /proxy/ targets. Empty allows every host.
	ProxyAllowedHosts []string `koanf:"proxy_allowed_hosts"`

	// ProxyMaxBodyBytes caps relayed bodies.
	ProxyMaxBodyBytes int64 `koanf:"proxy_max_body_bytes"`

	// BusBufferSize is the per-subscriber event buffer of the live stream.
	BusBufferSize int `koanf:"bus_buffer_size"`

	// GzipResponses compresses JSON and static responses.
	GzipResponses bool `koanf:"gzip_responses"`

	// MetricsEnabled switches Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsNamespace prefixes every exported Prometheus metric.
	MetricsNamespace string `koanf:"metrics_namespace"`

	// MetricsRefreshMS is how often process and service gauges are sampled.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms"`

	// Dashboards lists the endpoints to poll. When empty the service
	// monitors its own /metrics.json through its own proxy.
	Dashboards []Dashboard `koanf:"dashboards"`

	// Labels gives metrics human-readable captions.
	Labels []Label `koanf:"labels"`
}

// Dashboard configures one polled endpoint.
type Dashboard struct {
	Name           string `koanf:"name"`
	TargetURL      string `koanf:"target_url"`
	ProxyURLPrefix string `koanf:"proxy_url_prefix"`
	PollIntervalMS int    `koanf:"poll_interval_ms"`
	ShiftAfter     int    `koanf:"shift_after"`
	FetchTimeoutMS int    `koanf:"fetch_timeout_ms"`
	Retention      int    `koanf:"retention"`
}

// PollInterval returns the poll interval as a duration.
func (d Dashboard) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalMS) * time.Millisecond
}

// FetchTimeout returns the fetch timeout as a duration; zero means the poll interval.
func (d Dashboard) FetchTimeout() time.Duration {
	return time.Duration(d.FetchTimeoutMS) * time.Millisecond
}

// Label attaches captions to one metric name. Metric names commonly carry
// dots, so labels are a list rather than a map keyed by name.
type Label struct {
	Metric   string `koanf:"metric"`
	Title    string `koanf:"title"`
	Duration string `koanf:"duration"`
	Rate     string `koanf:"rate"`
}

// Dashboard defaults.
const (
	DefaultPollIntervalMS = 3000
	DefaultShiftAfter     = 30
)

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		ProxyTimeoutMS:    10_000,
		ProxyMaxBodyBytes: 8 << 20,
		BusBufferSize:     256,
		GzipResponses:     true,
		MetricsEnabled:    true,
		MetricsNamespace:  "pulseboard",
		MetricsRefreshMS:  10_000,
	}
}

// ProxyTimeout returns the proxy timeout as a duration.
func (c *Config) ProxyTimeout() time.Duration {
	return time.Duration(c.ProxyTimeoutMS) * time.Millisecond
}

// MetricsRefresh returns the gauge sampling interval as a duration.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshMS) * time.Millisecond
}

// LabelTable builds the lookup table used by dashboards.
func (c *Config) LabelTable() *labels.Table {
	entries := make(map[string]labels.Label, len(c.Labels))
	for _, l := range c.Labels {
		entries[l.Metric] = labels.Label{Title: l.Title, Duration: l.Duration, Rate: l.Rate}
	}
	return labels.NewTable(entries)
}

// SelfURL is the base URL under which the service reaches itself.
func (c *Config) SelfURL() string {
	host, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return "http://localhost" + c.Addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// SelfDashboard is the dashboard watching the service's own handler timings.
func (c *Config) SelfDashboard() Dashboard {
	self := c.SelfURL()
	return Dashboard{
		Name:           "self",
		TargetURL:      self + "/metrics.json",
		ProxyURLPrefix: self + "/proxy/?url=",
		PollIntervalMS: DefaultPollIntervalMS,
		ShiftAfter:     DefaultShiftAfter,
	}
}

// DefaultLabels captions the service's own handlers.
func DefaultLabels() []Label {
	return []Label{
		{Metric: "proxy", Title: "Proxy relay"},
		{Metric: "dashboards", Title: "Dashboard list"},
		{Metric: "dashboard", Title: "Dashboard detail"},
		{Metric: "stats", Title: "Service stats"},
		{Metric: "timings", Title: "Handler timings"},
		{Metric: "healthz", Title: "Prometheus scrape"},
	}
}

// applyDefaults fills unset slice settings and per-dashboard fields.
func (c *Config) applyDefaults() {
	if len(c.Dashboards) == 0 {
		c.Dashboards = []Dashboard{c.SelfDashboard()}
	}
	if len(c.Labels) == 0 {
		c.Labels = DefaultLabels()
	}
	for i := range c.Dashboards {
		d := &c.Dashboards[i]
		if d.PollIntervalMS == 0 {
			d.PollIntervalMS = DefaultPollIntervalMS
		}
		if d.ShiftAfter == 0 {
			d.ShiftAfter = DefaultShiftAfter
		}
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
