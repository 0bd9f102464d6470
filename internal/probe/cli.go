package probe

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/pulseboard/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging initializes the global logger on stderr, and additionally on
// logFile when one is given. The returned func closes the file.
func SetupLogging(logFile string) (func() error, error) {
	if logFile == "" {
		if err := logger.InitWithWriter(os.Stderr); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		return func() error { return nil }, nil
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.InitWithWriter(io.MultiWriter(os.Stderr, file)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return file.Close, nil
}

// ShowHelp prints usage information for the probe tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `pulseboard probe
================

Polls a metrics endpoint a few times with the dashboard pipeline and prints
the resulting series as a table.

Usage:
  go run ./cmd/probe [options]

Options:
  -target string
        Metrics endpoint to poll (default "http://localhost:9080/metrics.json")
  -proxy string
        Proxy prefix the target is appended to, e.g. http://localhost:9080/proxy/?url=
  -polls int
        Number of polls (default 5)
  -interval duration
        Pause between polls (default 1s)
  -timeout duration
        Per-poll fetch timeout (default 5s)
  -log string
        Also write logs to this file
  -verbose
        Log every poll outcome
  -help
        Show this help message

Labels are read from the file named by PULSE_CONFIG when it is set.

Examples:
  # Probe the service's own handler timings
  go run ./cmd/probe

  # Probe a remote endpoint through a running pulseboard proxy
  go run ./cmd/probe -target http://metrics.internal/metrics -proxy 'http://localhost:9080/proxy/?url='
`)
}
