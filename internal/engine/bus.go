package engine

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/domain/entity"
)

var (
	ErrBusClosed          = errors.New("event bus is closed")
	ErrSubscriberExists   = errors.New("subscriber already registered")
	ErrSubscriberNotFound = errors.New("subscriber not found")
)

// SubscriberStats counts deliveries for one subscriber.
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

type subscriber struct {
	ch      chan entity.Event
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Bus fans engine events out to subscribers. Publish never blocks:
// a subscriber whose buffer is full loses the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	observers   []port.EventSink
	closed      bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers a buffered channel under id.
func (b *Bus) Subscribe(id string, buffer int) (<-chan entity.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}
	if buffer < 1 {
		buffer = 1
	}

	sub := &subscriber{ch: make(chan entity.Event, buffer)}
	b.subscribers[id] = sub
	return sub.ch, nil
}

// Observe adds a synchronous sink. Observers run on the publishing goroutine
// and must return quickly.
func (b *Bus) Observe(sink port.EventSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, sink)
}

// Publish implements port.EventSink.
func (b *Bus) Publish(event entity.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, obs := range b.observers {
		obs.Publish(event)
	}
	for _, sub := range b.subscribers {
		select {
		case sub.ch <- event:
			sub.sent.Add(1)
		default:
			sub.dropped.Add(1)
		}
	}
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return ErrSubscriberNotFound
	}
	delete(b.subscribers, id)
	close(sub.ch)
	return nil
}

// Stats returns delivery counters for a subscriber.
func (b *Bus) Stats(id string) (SubscriberStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return SubscriberStats{}, ErrSubscriberNotFound
	}
	return SubscriberStats{Sent: sub.sent.Load(), Dropped: sub.dropped.Load()}, nil
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

var _ port.EventSink = (*Bus)(nil)
