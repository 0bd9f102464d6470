package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/okian/pulseboard/internal/domain/aggregator"
	"github.com/okian/pulseboard/internal/domain/model"
	"github.com/okian/pulseboard/internal/domain/snapshot"
)

type step struct {
	snap  snapshot.Snapshot
	err   error
	delay time.Duration
}

// scriptedFetcher replays steps in order and repeats the last one.
type scriptedFetcher struct {
	mu    sync.Mutex
	calls int
	steps []step
}

func (f *scriptedFetcher) Fetch(ctx context.Context) (snapshot.Snapshot, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.mu.Unlock()

	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	st := f.steps[i]
	if st.delay > 0 {
		select {
		case <-time.After(st.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return st.snap, st.err
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingHandler struct {
	mu      sync.Mutex
	results []aggregator.Result
}

func (h *recordingHandler) Handle(_ context.Context, r aggregator.Result) aggregator.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, r)
	return aggregator.OutcomeApplied
}

func (h *recordingHandler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.results)
}

func (h *recordingHandler) Seqs() []uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]uint64, 0, len(h.results))
	for _, r := range h.results {
		out = append(out, r.Seq)
	}
	return out
}

type collectingPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *collectingPublisher) Publish(_ context.Context, e model.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return true
}

func (p *collectingPublisher) Events() []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Event(nil), p.events...)
}

// tickingClock advances one second per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Unix(1_700_000_000, 0)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func reading(d, r float64) snapshot.Reading {
	return snapshot.Reading{DurationMean: d, RateMean: r}
}
