// Package aggregator folds poll results into a dashboard's series registry.
//
// An Aggregator is not safe for concurrent Handle calls: the poller feeds it
// from a single goroutine. Its counters and the registry may be read from
// anywhere.
package aggregator

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/okian/pulseboard/internal/domain/labels"
	"github.com/okian/pulseboard/internal/domain/model"
	"github.com/okian/pulseboard/internal/domain/series"
	"github.com/okian/pulseboard/internal/domain/snapshot"
	"github.com/okian/pulseboard/pkg/logger"
	"github.com/okian/pulseboard/pkg/metrics"
)

// DefaultShiftAfter is the number of polls after which charts start scrolling.
const DefaultShiftAfter = 30

// Error kinds reported on error events.
const (
	ErrorKindTransport = "transport"
	ErrorKindMalformed = "malformed"
	ErrorKindTimeout   = "timeout"
)

// Result is the outcome of one fetch, tagged with the sequence number it
// was issued with.
type Result struct {
	Seq      uint64
	Snapshot snapshot.Snapshot
	Err      error
	Latency  time.Duration
}

// Outcome tells what Handle did with a result.
type Outcome int

// Outcomes.
const (
	OutcomeApplied Outcome = iota + 1
	OutcomeStale
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeStale:
		return "stale"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Publisher receives dashboard events.
type Publisher interface {
	Publish(ctx context.Context, e model.Event) bool
}

// Stats are the aggregator counters.
type Stats struct {
	Polls       uint64 `json:"polls"`
	Errors      uint64 `json:"errors"`
	Stale       uint64 `json:"stale"`
	LastApplied uint64 `json:"last_applied_seq"`
	Series      int    `json:"series"`
}

// Aggregator applies snapshots to a registry and announces the changes.
type Aggregator struct {
	name       string
	registry   *series.Registry
	labels     *labels.Table
	publisher  Publisher
	now        func() time.Time
	classify   func(error) string
	shiftAfter uint64
	logger     logger.Logger

	polls       atomic.Uint64
	errors      atomic.Uint64
	stale       atomic.Uint64
	lastApplied atomic.Uint64
}

// New creates an aggregator writing into registry.
func New(registry *series.Registry, opts ...Option) *Aggregator {
	a := &Aggregator{
		name:       "default",
		registry:   registry,
		now:        time.Now,
		classify:   Classify,
		shiftAfter: DefaultShiftAfter,
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.registry == nil {
		a.registry = series.NewRegistry()
	}
	return a
}

// Registry returns the registry the aggregator writes into.
func (a *Aggregator) Registry() *series.Registry { return a.registry }

// Handle dispatches a result to OnSnapshot or OnError.
func (a *Aggregator) Handle(ctx context.Context, r Result) Outcome {
	if r.Err != nil {
		a.OnError(ctx, r.Seq, r.Err)
		return OutcomeFailed
	}
	return a.OnSnapshot(ctx, r.Seq, r.Snapshot)
}

// OnSnapshot applies snap unless a result with a higher sequence was
// already applied.
func (a *Aggregator) OnSnapshot(ctx context.Context, seq uint64, snap snapshot.Snapshot) Outcome {
	if last := a.lastApplied.Load(); seq <= last {
		a.stale.Add(1)
		metrics.RecordStaleResponse(a.name)
		a.logger.Debug(ctx, "dropping stale response",
			logger.Uint64("seq", seq),
			logger.Uint64("last_applied", last),
		)
		return OutcomeStale
	}
	a.lastApplied.Store(seq)
	poll := a.polls.Add(1)
	shift := poll >= a.shiftAfter
	at := a.now()

	for _, name := range snap.Names() {
		reading := snap[name]
		sample := a.registry.Append(name, at, reading.DurationMean, reading.RateMean)
		a.publish(ctx, model.Event{
			Kind:      model.KindUpdate,
			Dashboard: a.name,
			Seq:       seq,
			At:        sample.At,
			Metric:    name,
			Title:     a.labels.Lookup(name).Title,
			Duration:  sample.Duration,
			Rate:      sample.Rate,
			Seeded:    sample.Seeded,
			Shift:     shift,
			Poll:      poll,
			Samples:   sample.Samples,
		})
	}

	metrics.RecordPoll(a.name)
	metrics.RecordPointsAppended(a.name, len(snap))
	metrics.UpdateSeriesCount(a.name, a.registry.Len())
	a.logger.Debug(ctx, "snapshot applied",
		logger.Uint64("seq", seq),
		logger.Uint64("poll", poll),
		logger.Int("metrics", len(snap)),
		logger.Bool("shift", shift),
	)
	return OutcomeApplied
}

// OnError announces a failed poll. The registry is left untouched.
func (a *Aggregator) OnError(ctx context.Context, seq uint64, err error) {
	a.errors.Add(1)
	kind := a.classify(err)
	metrics.RecordPollError(a.name, kind)
	a.logger.Warn(ctx, "poll failed",
		logger.Uint64("seq", seq),
		logger.String("kind", kind),
		logger.Error(err),
	)
	a.publish(ctx, model.Event{
		Kind:      model.KindError,
		Dashboard: a.name,
		Seq:       seq,
		At:        a.now(),
		ErrorKind: kind,
		Message:   err.Error(),
	})
}

func (a *Aggregator) publish(ctx context.Context, e model.Event) {
	if a.publisher == nil {
		return
	}
	if !a.publisher.Publish(ctx, e) {
		a.logger.Debug(ctx, "event not delivered to every subscriber", logger.String("kind", string(e.Kind)))
	}
}

// ShiftAfter returns the configured shift threshold.
func (a *Aggregator) ShiftAfter() uint64 { return a.shiftAfter }

// Stats returns the current counters.
func (a *Aggregator) Stats() Stats {
	return Stats{
		Polls:       a.polls.Load(),
		Errors:      a.errors.Load(),
		Stale:       a.stale.Load(),
		LastApplied: a.lastApplied.Load(),
		Series:      a.registry.Len(),
	}
}

// Classify maps a poll error to an error kind.
func Classify(err error) string {
	switch {
	case errors.Is(err, snapshot.ErrMalformedResponse):
		return ErrorKindMalformed
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	default:
		return ErrorKindTransport
	}
}
