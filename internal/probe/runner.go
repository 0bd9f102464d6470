package probe

import (
	"context"
	"fmt"
	"io"
	"time"

	service "github.com/okian/pulseboard/internal/app"
	"github.com/okian/pulseboard/internal/domain/aggregator"
	"github.com/okian/pulseboard/pkg/logger"
)

const dashboardName = "probe"

// Run polls cfg.Target cfg.Polls times and writes the report to out.
func Run(ctx context.Context, cfg *Config, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.Get().Named("probe")
	stats := &Stats{StartTime: time.Now()}

	d, err := service.NewDashboard(service.PollConfig{
		Name:           dashboardName,
		TargetURL:      cfg.Target,
		ProxyURLPrefix: cfg.Proxy,
		Interval:       cfg.Interval,
		FetchTimeout:   cfg.Timeout,
	}, service.WithLabelTable(cfg.Labels), service.WithDashboardLogger(log))
	if err != nil {
		return fmt.Errorf("failed to build dashboard: %w", err)
	}

	log.Info(ctx, "starting probe",
		logger.String("target", cfg.Target),
		logger.String("fetchURL", d.Summary().FetchURL),
		logger.Int("polls", cfg.Polls),
		logger.Duration("interval", cfg.Interval))

	for i := 0; i < cfg.Polls; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Interval):
			}
		}

		r, outcome, err := d.PollOnce(ctx)
		if err != nil {
			return fmt.Errorf("poll %d: %w", i+1, err)
		}
		stats.Polls++
		switch outcome {
		case aggregator.OutcomeApplied:
			stats.Applied++
		case aggregator.OutcomeStale:
			stats.Stale++
		case aggregator.OutcomeFailed:
			stats.Failed++
			log.Warn(ctx, "poll failed", logger.Uint64("seq", r.Seq), logger.Error(r.Err))
		}
		if cfg.Verbose {
			log.Info(ctx, "poll done",
				logger.Uint64("seq", r.Seq),
				logger.String("outcome", outcome.String()),
				logger.Duration("latency", r.Latency),
				logger.Int("metrics", len(r.Snapshot)))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "probe finished",
		logger.Int("polls", stats.Polls),
		logger.Int("applied", stats.Applied),
		logger.Int("failed", stats.Failed),
		logger.Int("stale", stats.Stale),
		logger.Duration("duration", stats.Duration))

	if stats.Applied == 0 {
		return fmt.Errorf("%w: %d polls failed", ErrNoData, stats.Failed)
	}
	RenderTable(out, d.View())
	return nil
}
