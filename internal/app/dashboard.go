package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/pulseboard/internal/adapters/fetch"
	"github.com/okian/pulseboard/internal/domain/aggregator"
	"github.com/okian/pulseboard/internal/domain/labels"
	"github.com/okian/pulseboard/internal/domain/series"
	"github.com/okian/pulseboard/internal/domain/types"
	"github.com/okian/pulseboard/pkg/logger"
	"github.com/samber/lo"
)

// PollConfig describes one dashboard. It is immutable once the dashboard
// is built.
type PollConfig struct {
	Name           string
	TargetURL      string
	ProxyURLPrefix string
	Interval       time.Duration
	ShiftAfter     int
	// FetchTimeout defaults to Interval.
	FetchTimeout time.Duration
	// Retention bounds the points kept per series; 0 uses the default.
	Retention int
}

func (c PollConfig) validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDashboard)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: %s: poll interval must be positive", ErrInvalidDashboard, c.Name)
	}
	if c.ShiftAfter < 0 {
		return fmt.Errorf("%w: %s: shift threshold must not be negative", ErrInvalidDashboard, c.Name)
	}
	return nil
}

// Dashboard owns a registry, the aggregator feeding it and the poller
// driving the aggregator.
type Dashboard struct {
	cfg        PollConfig
	fetchURL   string
	labels     *labels.Table
	registry   *series.Registry
	aggregator *aggregator.Aggregator
	poller     *Poller
}

// DashboardOption tunes how a dashboard is assembled.
type DashboardOption func(*dashboardDeps)

type dashboardDeps struct {
	fetcher   Fetcher
	publisher aggregator.Publisher
	labels    *labels.Table
	logger    logger.Logger
	now       func() time.Time
}

// WithFetcher replaces the HTTP fetch client.
func WithFetcher(f Fetcher) DashboardOption {
	return func(d *dashboardDeps) { d.fetcher = f }
}

// WithPublisher routes dashboard events to p.
func WithPublisher(p aggregator.Publisher) DashboardOption {
	return func(d *dashboardDeps) { d.publisher = p }
}

// WithLabelTable sets the label lookup.
func WithLabelTable(t *labels.Table) DashboardOption {
	return func(d *dashboardDeps) { d.labels = t }
}

// WithDashboardLogger sets the logger.
func WithDashboardLogger(l logger.Logger) DashboardOption {
	return func(d *dashboardDeps) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithDashboardClock overrides the clock used to timestamp samples.
func WithDashboardClock(now func() time.Time) DashboardOption {
	return func(d *dashboardDeps) { d.now = now }
}

// NewDashboard builds a dashboard in the idle state.
func NewDashboard(cfg PollConfig, opts ...DashboardOption) (*Dashboard, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.ShiftAfter == 0 {
		cfg.ShiftAfter = aggregator.DefaultShiftAfter
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = cfg.Interval
	}
	if cfg.Retention == 0 {
		cfg.Retention = series.DefaultRetention
	}

	deps := dashboardDeps{logger: logger.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(&deps)
	}
	log := deps.logger.Named("dashboard." + cfg.Name)

	d := &Dashboard{cfg: cfg, labels: deps.labels}
	fetcher := deps.fetcher
	if fetcher == nil {
		client, err := fetch.NewClient(cfg.TargetURL,
			fetch.WithProxyPrefix(cfg.ProxyURLPrefix),
			fetch.WithTimeout(cfg.FetchTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDashboard, cfg.Name, err)
		}
		fetcher = client
		d.fetchURL = client.URL()
	}

	d.registry = series.NewRegistry(series.WithRetention(cfg.Retention))
	aggOpts := []aggregator.Option{
		aggregator.WithName(cfg.Name),
		aggregator.WithShiftAfter(cfg.ShiftAfter),
		aggregator.WithLabels(deps.labels),
		aggregator.WithClock(deps.now),
		aggregator.WithLogger(log),
	}
	if deps.publisher != nil {
		aggOpts = append(aggOpts, aggregator.WithPublisher(deps.publisher))
	}
	d.aggregator = aggregator.New(d.registry, aggOpts...)
	d.poller = NewPoller(cfg.Name, cfg.Interval, fetcher, d.aggregator, log)
	return d, nil
}

// Name returns the dashboard name.
func (d *Dashboard) Name() string { return d.cfg.Name }

// Config returns the dashboard configuration with defaults applied.
func (d *Dashboard) Config() PollConfig { return d.cfg }

// Start starts polling.
func (d *Dashboard) Start(ctx context.Context) error { return d.poller.Start(ctx) }

// Stop stops polling.
func (d *Dashboard) Stop() { d.poller.Stop() }

// State returns the poller state.
func (d *Dashboard) State() State { return d.poller.State() }

// Registry returns the series registry.
func (d *Dashboard) Registry() *series.Registry { return d.registry }

// Stats returns the aggregator counters.
func (d *Dashboard) Stats() aggregator.Stats { return d.aggregator.Stats() }

// PollOnce fetches and applies one snapshot synchronously. It refuses to run
// while the dashboard is polling or another PollOnce is in flight, and Start
// is refused until it returns, so the registry keeps a single writer.
func (d *Dashboard) PollOnce(ctx context.Context) (aggregator.Result, aggregator.Outcome, error) {
	if !d.poller.claimIdle() {
		return aggregator.Result{}, 0, ErrPolling
	}
	defer d.poller.releaseIdle()
	r := d.poller.PollOnce(ctx)
	return r, d.aggregator.Handle(ctx, r), nil
}

// Summary returns the dashboard description without series data.
func (d *Dashboard) Summary() types.Dashboard {
	st := d.aggregator.Stats()
	return types.Dashboard{
		Name:           d.cfg.Name,
		TargetURL:      d.cfg.TargetURL,
		FetchURL:       d.fetchURL,
		State:          string(d.poller.State()),
		PollIntervalMS: d.cfg.Interval.Milliseconds(),
		ShiftAfter:     d.cfg.ShiftAfter,
		Polls:          st.Polls,
		Errors:         st.Errors,
		Stale:          st.Stale,
		Metrics:        d.registry.Names(),
	}
}

// View returns the summary plus every series.
func (d *Dashboard) View() types.Dashboard {
	v := d.Summary()
	v.Series = lo.Map(d.registry.Views(), func(sv series.View, _ int) types.Series {
		l := d.labels.Lookup(sv.Name)
		return types.Series{
			Metric:        sv.Name,
			Title:         l.Title,
			DurationLabel: l.Duration,
			RateLabel:     l.Rate,
			Samples:       sv.Samples,
			Duration:      toPoints(sv.Duration),
			Rate:          toPoints(sv.Rate),
		}
	})
	return v
}

func toPoints(points []series.Point) []types.Point {
	return lo.Map(points, func(p series.Point, _ int) types.Point {
		return types.Point{TS: p.At.UnixMilli(), Value: p.Value}
	})
}
