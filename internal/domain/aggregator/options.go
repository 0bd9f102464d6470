package aggregator

import (
	"time"

	"github.com/okian/pulseboard/internal/domain/labels"
	"github.com/okian/pulseboard/pkg/logger"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithName sets the dashboard name stamped on events and metrics.
func WithName(name string) Option {
	return func(a *Aggregator) {
		if name != "" {
			a.name = name
		}
	}
}

// WithShiftAfter sets the poll count from which updates carry shift=true.
func WithShiftAfter(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.shiftAfter = uint64(n)
		}
	}
}

// WithLabels sets the label table used for event titles.
func WithLabels(t *labels.Table) Option {
	return func(a *Aggregator) {
		a.labels = t
	}
}

// WithPublisher sets the event sink.
func WithPublisher(p Publisher) Option {
	return func(a *Aggregator) {
		a.publisher = p
	}
}

// WithClock overrides the wall clock used to timestamp samples.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithClassifier overrides how errors are mapped to error kinds.
func WithClassifier(classify func(error) string) Option {
	return func(a *Aggregator) {
		if classify != nil {
			a.classify = classify
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}
