package probe

import (
	"fmt"
	"net/url"
	"time"

	"github.com/okian/pulseboard/internal/domain/labels"
)

// Config holds the settings of one probe run.
type Config struct {
	Target   string        // Absolute URL of the metrics endpoint
	Proxy    string        // Optional proxy prefix, e.g. http://localhost:9080/proxy/?url=
	Polls    int           // Number of polls to run
	Interval time.Duration // Pause between polls
	Timeout  time.Duration // Per-poll fetch timeout
	LogFile  string        // Log file for probe output
	Verbose  bool          // Log every poll outcome
	Labels   *labels.Table // Captions for the report; nil uses raw names
}

// Validate checks the settings.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Target)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: target must be an absolute http(s) URL: %q", ErrInvalidConfig, c.Target)
	}
	if c.Polls <= 0 {
		return fmt.Errorf("%w: polls must be positive", ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Stats counts poll outcomes.
type Stats struct {
	Polls     int
	Applied   int
	Failed    int
	Stale     int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
