package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pulseboard/internal/domain/aggregator"
	"github.com/okian/pulseboard/internal/domain/snapshot"
	"github.com/okian/pulseboard/pkg/logger"
	"github.com/okian/pulseboard/pkg/metrics"
)

// Fetcher retrieves one snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (snapshot.Snapshot, error)
}

// ResultHandler consumes poll results. It is only ever called from the
// poller loop goroutine.
type ResultHandler interface {
	Handle(ctx context.Context, r aggregator.Result) aggregator.Outcome
}

// State is the lifecycle state of a poller.
type State string

// Poller states.
const (
	StateIdle    State = "idle"
	StatePolling State = "polling"
)

// Poller issues a sequenced fetch on every tick and hands the results to a
// ResultHandler in a single goroutine. Fetches may overlap.
type Poller struct {
	name     string
	interval time.Duration
	fetcher  Fetcher
	handler  ResultHandler
	logger   logger.Logger

	seq atomic.Uint64

	mu     sync.Mutex
	state  State
	manual bool // a synchronous poll owns the handler
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates an idle poller.
func NewPoller(name string, interval time.Duration, fetcher Fetcher, handler ResultHandler, log logger.Logger) *Poller {
	if log == nil {
		log = logger.Discard()
	}
	return &Poller{
		name:     name,
		interval: interval,
		fetcher:  fetcher,
		handler:  handler,
		logger:   log,
		state:    StateIdle,
	}
}

// Start begins polling. The loop ends on Stop or when ctx is done.
// Starting a polling poller is a no-op.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stateLocked() == StatePolling {
		return nil
	}
	if p.manual {
		return ErrPolling
	}
	if p.interval <= 0 {
		return ErrInvalidInterval
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.state = StatePolling
	go p.run(loopCtx, p.done)

	p.logger.Info(ctx, "poller started", logger.Duration("interval", p.interval))
	return nil
}

// Stop cancels the ticker and in-flight fetches and waits for the loop to
// exit. It is idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state == StateIdle {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.state = StateIdle
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	<-done
	p.logger.Info(context.Background(), "poller stopped", logger.Uint64("last_seq", p.seq.Load()))
}

// State returns the current state. A poller whose context ended reports idle.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Poller) stateLocked() State {
	if p.state == StatePolling {
		select {
		case <-p.done:
			return StateIdle
		default:
		}
	}
	return p.state
}

// PollOnce issues one sequenced fetch and waits for it. The result is not
// handed to the handler.
func (p *Poller) PollOnce(ctx context.Context) aggregator.Result {
	return p.fetch(ctx, p.seq.Add(1))
}

// claimIdle reserves an idle poller for one synchronous poll. While the
// claim is held Start fails with ErrPolling and further claims fail.
func (p *Poller) claimIdle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.manual || p.stateLocked() == StatePolling {
		return false
	}
	p.manual = true
	return true
}

func (p *Poller) releaseIdle() {
	p.mu.Lock()
	p.manual = false
	p.mu.Unlock()
}

// LastSeq returns the highest sequence number issued.
func (p *Poller) LastSeq() uint64 { return p.seq.Load() }

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	var fetches sync.WaitGroup
	defer close(done)
	defer fetches.Wait()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	results := make(chan aggregator.Result)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq := p.seq.Add(1)
			fetches.Add(1)
			metrics.AddInflightFetches(p.name, 1)
			go func() {
				defer fetches.Done()
				defer metrics.AddInflightFetches(p.name, -1)
				r := p.fetch(ctx, seq)
				select {
				case results <- r:
				case <-ctx.Done():
				}
			}()
		case r := <-results:
			p.handler.Handle(ctx, r)
		}
	}
}

func (p *Poller) fetch(ctx context.Context, seq uint64) aggregator.Result {
	start := time.Now()
	snap, err := p.fetcher.Fetch(ctx)
	latency := time.Since(start)
	metrics.RecordFetchLatency(p.name, latency)
	return aggregator.Result{Seq: seq, Snapshot: snap, Err: err, Latency: latency}
}
