// Package bus fans dashboard events out to live subscribers.
//
// Publishing never blocks: every subscriber owns a bounded buffer and an
// event that does not fit is dropped for that subscriber only.
package bus

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/okian/pulseboard/internal/domain/model"
	"github.com/okian/pulseboard/pkg/metrics"
)

const (
	defaultBufferSize = 256
)

// Event is the payload flowing through the bus.
type Event = model.Event

// Publisher accepts events for fan-out.
type Publisher interface {
	// Publish hands e to every subscriber. It returns false if at least
	// one subscriber could not take it.
	Publish(ctx context.Context, e Event) bool
}

// Subscription is one subscriber's view of the bus.
type Subscription struct {
	ID     string
	events chan Event
	once   sync.Once
}

// Events returns the channel of delivered events. It is closed on
// unsubscribe or when the bus closes.
func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) close() {
	s.once.Do(func() { close(s.events) })
}

// Bus is an in-memory publish/subscribe hub.
type Bus struct {
	mu         sync.RWMutex
	subs       map[string]*Subscription
	bufferSize int
	closed     bool
}

// New creates a bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:       make(map[string]*Subscription),
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a subscriber. The subscription ends when ctx is done
// or Unsubscribe is called.
func (b *Bus) Subscribe(ctx context.Context) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	sub := &Subscription{ID: uuid.NewString(), events: make(chan Event, b.bufferSize)}
	b.subs[sub.ID] = sub
	metrics.UpdateBusSubscribers(len(b.subs))

	go func() {
		<-ctx.Done()
		b.Unsubscribe(sub.ID)
	}()
	return sub, nil
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	sub.close()
	metrics.UpdateBusSubscribers(len(b.subs))
}

// Publish implements Publisher.
func (b *Bus) Publish(ctx context.Context, e Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed || ctx.Err() != nil {
		return false
	}
	metrics.RecordBusPublish()

	delivered := true
	for _, sub := range b.subs {
		select {
		case sub.events <- e:
		default:
			delivered = false
			metrics.RecordBusDrop()
		}
	}
	return delivered
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later publishes are ignored.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.close()
		delete(b.subs, id)
	}
	metrics.UpdateBusSubscribers(0)
	return nil
}

// IsClosed returns true if the bus has been closed.
func (b *Bus) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
