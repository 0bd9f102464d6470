package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/okian/pulseboard/internal/adapters/http/api"
	"github.com/okian/pulseboard/internal/adapters/http/proxy"
	"github.com/okian/pulseboard/internal/adapters/http/site"
	"github.com/okian/pulseboard/internal/adapters/http/swagger"
	service "github.com/okian/pulseboard/internal/app"
	"github.com/okian/pulseboard/internal/config"
	"github.com/okian/pulseboard/pkg/logger"
	"github.com/okian/pulseboard/pkg/metrics"
	"github.com/samber/lo"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> optional file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Before anything records or mounts the registry.
	metrics.Configure(metricsOptions(cfg)...)

	svc := newService(cfg, log)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc, log),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		// No WriteTimeout: /ws connections are long lived and set their own deadlines.
	}

	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.Int("dashboards", len(cfg.Dashboards)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// pollConfigs converts configured dashboards into service poll settings.
func pollConfigs(cfg *config.Config) []service.PollConfig {
	return lo.Map(cfg.Dashboards, func(d config.Dashboard, _ int) service.PollConfig {
		return service.PollConfig{
			Name:           d.Name,
			TargetURL:      d.TargetURL,
			ProxyURLPrefix: d.ProxyURLPrefix,
			Interval:       d.PollInterval(),
			ShiftAfter:     d.ShiftAfter,
			FetchTimeout:   d.FetchTimeout(),
			Retention:      d.Retention,
		}
	})
}

// metricsOptions maps the metrics settings onto the global manager.
func metricsOptions(cfg *config.Config) []metrics.Option {
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithRefreshInterval(cfg.MetricsRefresh()),
	}
}

func newService(cfg *config.Config, log logger.Logger) *service.Service {
	return service.New(
		service.WithDashboards(pollConfigs(cfg)...),
		service.WithLabels(cfg.LabelTable()),
		service.WithBusBufferSize(cfg.BusBufferSize),
		service.WithLogger(log.Named("service")),
	)
}

// newMux mounts every route: the proxy, the JSON API, the live stream,
// the API docs and the dashboard page.
func newMux(ctx context.Context, cfg *config.Config, svc *service.Service, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	relay := proxy.New(
		proxy.WithTimeout(cfg.ProxyTimeout()),
		proxy.WithAllowedHosts(cfg.ProxyAllowedHosts),
		proxy.WithMaxBodyBytes(cfg.ProxyMaxBodyBytes),
		proxy.WithLogger(log.Named("proxy")),
	)

	apiServer := api.NewServer(svc, svc,
		api.WithProxy(relay),
		api.WithGzip(cfg.GzipResponses),
		api.WithLogger(log.Named("api")),
	)
	apiServer.Register(ctx, mux)

	swagger.Register(ctx, mux)

	var middleware []site.Middleware
	if cfg.GzipResponses {
		middleware = append(middleware, func(h http.Handler) http.Handler { return gzhttp.GzipHandler(h) })
	}
	site.Register(ctx, mux, middleware...)

	return mux
}

// startSystemMetricsUpdater refreshes process metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval() / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics recounts polling dashboards; a poller can stop on
// its own when its context ends.
func updateServiceMetrics(svc *service.Service) {
	polling := lo.CountBy(svc.Dashboards(), func(d *service.Dashboard) bool {
		return d.State() == service.StatePolling
	})
	metrics.UpdateDashboardsPolling(polling)
}
