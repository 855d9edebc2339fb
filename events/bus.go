// Package events fans incoming signal-cli notifications out to any number
// of independent subscribers: WebSocket feeds, SSE streams, and the webhook
// dispatcher.
package events

import (
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the per-subscription buffer. A subscriber that falls
// further behind than this loses its oldest events.
const DefaultQueueSize = 256

// Bus is a broadcast channel with drop-on-lag backpressure. Publish never
// blocks, no matter how many subscribers exist or how slow they are.
type Bus struct {
	queueSize int

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

type BusOption func(b *Bus)

func WithQueueSize(n int) BusOption {
	return func(b *Bus) {
		b.queueSize = n
	}
}

func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		queueSize: DefaultQueueSize,
		subs:      map[*Subscription]struct{}{},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers a new independent consumer. The caller must Close the
// subscription when done with it.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{
		bus: b,
		ch:  make(chan []byte, b.queueSize),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		s.closed = true
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers raw to every live subscription. A subscription whose
// queue is full loses its oldest entry instead of stalling the publisher.
// The caller must not reuse raw's backing array after publishing.
func (b *Bus) Publish(raw []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		s.push(raw)
	}
}

// Close terminates every subscription. Used when the daemon connection is
// torn down so feed consumers observe the shutdown instead of hanging.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = map[*Subscription]struct{}{}
	b.closed = true
	b.mu.Unlock()

	for s := range subs {
		s.terminate()
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscription is one consumer's bounded event queue.
type Subscription struct {
	bus    *Bus
	lagged atomic.Uint64

	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

// Events returns the receive channel. It is closed when the subscription or
// the bus shuts down.
func (s *Subscription) Events() <-chan []byte {
	return s.ch
}

// Lagged reports how many events this subscriber has lost to backpressure.
func (s *Subscription) Lagged() uint64 {
	return s.lagged.Load()
}

// Close detaches the subscription from the bus and closes its channel.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.terminate()
}

func (s *Subscription) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// push is only ever called by the bus, which is the sole producer; holding
// s.mu here also excludes a concurrent close of the channel.
func (s *Subscription) push(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- raw:
			return
		default:
		}
		// Queue full: evict the oldest entry and count the gap.
		select {
		case <-s.ch:
			s.lagged.Add(1)
		default:
		}
	}
}
