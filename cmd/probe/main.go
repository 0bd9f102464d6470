package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/pulseboard/internal/config"
	"github.com/okian/pulseboard/internal/probe"
	"github.com/okian/pulseboard/pkg/logger"
)

// Default flag values.
const (
	defaultTarget   = "http://localhost:9080/metrics.json"
	defaultPolls    = 5
	defaultInterval = time.Second
	defaultTimeout  = 5 * time.Second
)

func main() {
	var (
		target   = flag.String("target", defaultTarget, "Metrics endpoint to poll")
		proxy    = flag.String("proxy", "", "Proxy prefix the target is appended to")
		polls    = flag.Int("polls", defaultPolls, "Number of polls")
		interval = flag.Duration("interval", defaultInterval, "Pause between polls")
		timeout  = flag.Duration("timeout", defaultTimeout, "Per-poll fetch timeout")
		logFile  = flag.String("log", "", "Also write logs to this file")
		verbose  = flag.Bool("verbose", false, "Log every poll outcome")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		probe.ShowHelp(os.Stdout)
		return
	}

	closeLog, err := probe.SetupLogging(*logFile)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &probe.Config{
		Target:   *target,
		Proxy:    *proxy,
		Polls:    *polls,
		Interval: *interval,
		Timeout:  *timeout,
		LogFile:  *logFile,
		Verbose:  *verbose,
	}
	if os.Getenv(config.EnvConfigPath) != "" {
		if c, err := config.Load(ctx); err != nil {
			logger.Get().Warn(ctx, "ignoring labels from config", logger.Error(err))
		} else {
			cfg.Labels = c.LabelTable()
		}
	}

	if err := probe.Run(ctx, cfg, os.Stdout); err != nil {
		os.Stderr.WriteString("Probe failed: " + err.Error() + "\n")
		_ = closeLog()
		os.Exit(1) //nolint:gocritic // log file closed above

	}
}
