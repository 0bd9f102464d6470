// Package service runs the configured dashboards and exposes what the HTTP
// API needs: views, statistics and the live event stream.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pulseboard/internal/adapters/mq/bus"
	"github.com/okian/pulseboard/internal/domain/labels"
	"github.com/okian/pulseboard/internal/domain/model"
	"github.com/okian/pulseboard/internal/domain/types"
	"github.com/okian/pulseboard/pkg/logger"
	"github.com/okian/pulseboard/pkg/metrics"
	"github.com/samber/lo"
)

// Service owns every dashboard and the event bus they publish to.
type Service struct {
	mu sync.RWMutex

	// Configuration
	configs        []PollConfig
	labels         *labels.Table
	busBufferSize  int
	fetcherFactory func(PollConfig) Fetcher
	now            func() time.Time

	// Components
	bus        atomic.Pointer[bus.Bus]
	dashboards map[string]*Dashboard
	order      []string

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDashboards adds dashboards to run.
func WithDashboards(cfgs ...PollConfig) Option {
	return func(s *Service) {
		s.configs = append(s.configs, cfgs...)
	}
}

// WithLabels sets the metric label table shared by every dashboard.
func WithLabels(t *labels.Table) Option {
	return func(s *Service) {
		s.labels = t
	}
}

// WithBusBufferSize sets the per-subscriber event buffer.
func WithBusBufferSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.busBufferSize = size
		}
	}
}

// WithFetcherFactory replaces the HTTP fetch client of every dashboard.
func WithFetcherFactory(f func(PollConfig) Fetcher) Option {
	return func(s *Service) {
		s.fetcherFactory = f
	}
}

// WithClock overrides the clock used to timestamp samples.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Dashboards are built on the first Start.
func New(opts ...Option) *Service {
	s := &Service{
		busBufferSize: 256,
		now:           time.Now,
		dashboards:    make(map[string]*Dashboard),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.labels == nil {
		s.labels = labels.NewTable(nil)
	}
	return s
}

// Start builds the dashboards if needed and starts polling them all.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting dashboard service...")

	if b := s.bus.Load(); b == nil || b.IsClosed() {
		s.bus.Store(bus.New(bus.WithBufferSize(s.busBufferSize)))
	}
	if len(s.order) == 0 {
		if err := s.build(); err != nil {
			s.dashboards, s.order = make(map[string]*Dashboard), nil
			return err
		}
	}

	for _, name := range s.order {
		if err := s.dashboards[name].Start(ctx); err != nil {
			s.stopDashboards()
			return fmt.Errorf("start dashboard %s: %w", name, err)
		}
	}

	s.started = true
	s.startedAt = s.now()
	metrics.UpdateDashboardsPolling(len(s.order))
	s.logger.Info(ctx, "dashboard service started",
		logger.Int("dashboards", len(s.order)),
		logger.Int("busBufferSize", s.busBufferSize),
	)
	return nil
}

func (s *Service) build() error {
	for _, cfg := range s.configs {
		if _, dup := s.dashboards[cfg.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateDashboard, cfg.Name)
		}
		opts := []DashboardOption{
			WithPublisher(s),
			WithLabelTable(s.labels),
			WithDashboardLogger(s.logger),
			WithDashboardClock(s.now),
		}
		if s.fetcherFactory != nil {
			opts = append(opts, WithFetcher(s.fetcherFactory(cfg)))
		}
		d, err := NewDashboard(cfg, opts...)
		if err != nil {
			return err
		}
		s.dashboards[cfg.Name] = d
		s.order = append(s.order, cfg.Name)
		s.logger.Info(context.Background(), "dashboard configured",
			logger.String("name", cfg.Name),
			logger.String("target", cfg.TargetURL),
			logger.Duration("interval", d.cfg.Interval),
			logger.Int("shiftAfter", d.cfg.ShiftAfter),
		)
	}
	return nil
}

// Stop stops every dashboard and closes the event bus.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping dashboard service...")
	s.stopDashboards()
	if b := s.bus.Load(); b != nil {
		_ = b.Close()
	}

	s.started = false
	metrics.UpdateDashboardsPolling(0)
	s.logger.Info(context.Background(), "dashboard service stopped")
}

func (s *Service) stopDashboards() {
	for _, name := range s.order {
		s.dashboards[name].Stop()
	}
}

// Publish forwards dashboard events to the current bus. It never takes the
// service lock: Stop waits for poller loops that may be publishing.
func (s *Service) Publish(ctx context.Context, e model.Event) bool {
	b := s.bus.Load()
	if b == nil {
		return false
	}
	return b.Publish(ctx, e)
}

// Subscribe registers a live event subscriber.
func (s *Service) Subscribe(ctx context.Context) (*bus.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	return s.bus.Load().Subscribe(ctx)
}

// Dashboard returns the named dashboard.
func (s *Service) Dashboard(name string) (*Dashboard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dashboards[name]
	return d, ok
}

// Dashboards returns the dashboards in configuration order.
func (s *Service) Dashboards() []*Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Map(s.order, func(name string, _ int) *Dashboard { return s.dashboards[name] })
}

// DashboardView returns the named dashboard with its series.
func (s *Service) DashboardView(name string) (types.Dashboard, bool) {
	d, ok := s.Dashboard(name)
	if !ok {
		return types.Dashboard{}, false
	}
	return d.View(), true
}

// Summaries returns every dashboard without series data.
func (s *Service) Summaries() []types.Dashboard {
	return lo.Map(s.Dashboards(), func(d *Dashboard, _ int) types.Dashboard { return d.Summary() })
}

// Views returns every dashboard with its series.
func (s *Service) Views() []types.Dashboard {
	return lo.Map(s.Dashboards(), func(d *Dashboard, _ int) types.Dashboard { return d.View() })
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"dashboards":    len(s.order),
		"busBufferSize": s.busBufferSize,
	}
	if !s.started {
		return stats
	}

	stats["uptimeSeconds"] = s.now().Sub(s.startedAt).Seconds()
	stats["subscribers"] = s.bus.Load().Len()

	perDashboard := make(map[string]interface{}, len(s.order))
	series := 0
	for _, name := range s.order {
		d := s.dashboards[name]
		st := d.Stats()
		series += st.Series
		perDashboard[name] = map[string]interface{}{
			"state":          string(d.State()),
			"polls":          st.Polls,
			"errors":         st.Errors,
			"stale":          st.Stale,
			"lastAppliedSeq": st.LastApplied,
			"series":         st.Series,
		}
	}
	stats["totalSeries"] = series
	stats["perDashboard"] = perDashboard
	return stats
}
