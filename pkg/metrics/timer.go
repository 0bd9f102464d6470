package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Mean wraps a single mean value.
type Mean struct {
	Mean float64 `json:"mean"`
}

// TimerStats is the timer block of a handler reading.
type TimerStats struct {
	Duration Mean   `json:"duration"`
	Rate     Mean   `json:"rate"`
	Count    uint64 `json:"count"`
}

// TimerReading is the per-handler document served by /metrics.json.
type TimerReading struct {
	Timer TimerStats `json:"timer"`
}

// TimerOption configures HandlerTimers.
type TimerOption func(*HandlerTimers)

// WithTimerClock overrides the clock used to compute mean rates.
func WithTimerClock(now func() time.Time) TimerOption {
	return func(t *HandlerTimers) {
		if now != nil {
			t.now = now
			t.started = now()
		}
	}
}

// HandlerTimers times named handlers. Duration means come from a histogram,
// rate means are count over seconds since the timers were created.
type HandlerTimers struct {
	mu       sync.RWMutex
	now      func() time.Time
	started  time.Time
	duration *prometheus.HistogramVec
	names    map[string]struct{}
}

// NewHandlerTimers creates an empty timer set.
func NewHandlerTimers(opts ...TimerOption) *HandlerTimers {
	t := &HandlerTimers{
		now:     time.Now,
		started: time.Now(),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "handler_duration_milliseconds",
			Help:    "Handler duration in milliseconds",
			Buckets: MillisecondBuckets,
		}, []string{"handler"}),
		names: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe records one handler execution.
func (t *HandlerTimers) Observe(handler string, d time.Duration) {
	t.mu.Lock()
	t.names[handler] = struct{}{}
	t.mu.Unlock()
	t.duration.WithLabelValues(handler).Observe(float64(d.Microseconds()) / 1000)
}

// Time starts timing handler; call the returned func when it finishes.
func (t *HandlerTimers) Time(handler string) func() {
	start := t.now()
	return func() { t.Observe(handler, t.now().Sub(start)) }
}

// Names returns the timed handler names in lexical order.
func (t *HandlerTimers) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.names))
	for n := range t.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Snapshot reads every handler timer.
func (t *HandlerTimers) Snapshot() (map[string]TimerReading, error) {
	elapsed := t.now().Sub(t.started).Seconds()
	out := make(map[string]TimerReading)
	for _, name := range t.Names() {
		obs, err := t.duration.GetMetricWithLabelValues(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrObserveFailed, err)
		}
		metric, ok := obs.(prometheus.Metric)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not readable", ErrObserveFailed, name)
		}
		var m dto.Metric
		if err := metric.Write(&m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrObserveFailed, err)
		}
		h := m.GetHistogram()
		count := h.GetSampleCount()

		var reading TimerReading
		reading.Timer.Count = count
		if count > 0 {
			reading.Timer.Duration.Mean = h.GetSampleSum() / float64(count)
		}
		if elapsed > 0 {
			reading.Timer.Rate.Mean = float64(count) / elapsed
		}
		out[name] = reading
	}
	return out, nil
}

var defaultTimers = NewHandlerTimers() //nolint:gochecknoglobals // process-wide handler timers

// ObserveHandler records a handler execution on the process-wide timers.
func ObserveHandler(handler string, d time.Duration) {
	defaultTimers.Observe(handler, d)
}

// HandlerTimings reads the process-wide handler timers.
func HandlerTimings() (map[string]TimerReading, error) {
	return defaultTimers.Snapshot()
}
