package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix     = "PULSE_"
	EnvConfigPath = "PULSE_CONFIG"
)

var metricNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if PULSE_CONFIG is set
//  3. env (prefix PULSE_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// PULSE_PROXY_TIMEOUT_MS -> proxy_timeout_ms (flat keys, underscores kept).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The file path itself is not a setting.
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings. Every error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("unknown log_level %q", c.LogLevel)
	}
	if c.ProxyTimeoutMS <= 0 {
		return invalid("proxy_timeout_ms must be positive")
	}
	if c.ProxyMaxBodyBytes <= 0 {
		return invalid("proxy_max_body_bytes must be positive")
	}
	if c.BusBufferSize <= 0 {
		return invalid("bus_buffer_size must be positive")
	}
	if !metricNamePattern.MatchString(c.MetricsNamespace) {
		return invalid("metrics_namespace %q is not a valid metric name prefix", c.MetricsNamespace)
	}
	if c.MetricsRefreshMS <= 0 {
		return invalid("metrics_refresh_ms must be positive")
	}

	seen := make(map[string]struct{}, len(c.Dashboards))
	for i, d := range c.Dashboards {
		if d.Name == "" {
			return invalid("dashboards[%d]: name must not be empty", i)
		}
		if _, dup := seen[d.Name]; dup {
			return invalid("dashboards[%d]: duplicate name %q", i, d.Name)
		}
		seen[d.Name] = struct{}{}
		if !absoluteHTTP(d.TargetURL) {
			return invalid("dashboard %s: target_url must be an absolute http(s) URL", d.Name)
		}
		if d.ProxyURLPrefix != "" && !absoluteHTTP(d.ProxyURLPrefix) {
			return invalid("dashboard %s: proxy_url_prefix must be an absolute http(s) URL", d.Name)
		}
		if d.PollIntervalMS <= 0 {
			return invalid("dashboard %s: poll_interval_ms must be positive", d.Name)
		}
		if d.ShiftAfter < 0 || d.FetchTimeoutMS < 0 {
			return invalid("dashboard %s: shift_after and fetch_timeout_ms must not be negative", d.Name)
		}
	}
	for i, l := range c.Labels {
		if l.Metric == "" {
			return invalid("labels[%d]: metric must not be empty", i)
		}
	}
	return nil
}

func absoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
