package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the default channel buffer size for subscribers.
const DefaultBufferSize = 100

type subscriber struct {
	name string
	ch   chan Event
}

// Router fans events out from producers to subscriber channels. Emit never
// blocks: a subscriber whose buffer is full misses the event.
type Router struct {
	bufferSize int
	logger     *slog.Logger
	dropped    atomic.Uint64

	mu          sync.RWMutex
	subscribers []subscriber
	closed      bool
}

// NewRouter creates a router. If bufferSize is 0 or negative,
// DefaultBufferSize is used.
func NewRouter(bufferSize int) *Router {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Router{
		bufferSize: bufferSize,
		logger:     slog.Default(),
	}
}

// SetLogger replaces the logger used to report dropped events.
func (r *Router) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l
	}
}

// Emit publishes an event to all subscribers.
// Safe to call concurrently and after Close (becomes a no-op).
func (r *Router) Emit(event Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	for _, sub := range r.subscribers {
		select {
		case sub.ch <- event:
		default:
			r.dropped.Add(1)
			r.logger.Warn("event dropped: subscriber channel full",
				"event_type", event.Type(),
				"subscriber", sub.name,
			)
		}
	}
}

// Dropped returns how many deliveries were dropped since start.
func (r *Router) Dropped() uint64 {
	return r.dropped.Load()
}

// Subscribe returns a channel that receives all emitted events.
// The returned channel is closed when the router is closed.
func (r *Router) Subscribe(name string) <-chan Event {
	return r.SubscribeBuffered(name, r.bufferSize)
}

// SubscribeBuffered is Subscribe with an explicit buffer size.
func (r *Router) SubscribeBuffered(name string, size int) <-chan Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, size)
	r.subscribers = append(r.subscribers, subscriber{name: name, ch: ch})
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Unknown
// channels are ignored.
func (r *Router) Unsubscribe(ch <-chan Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, sub := range r.subscribers {
		if sub.ch == ch {
			r.subscribers = append(r.subscribers[:i], r.subscribers[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Close closes all subscriber channels. Close is idempotent.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.closed = true
	for _, sub := range r.subscribers {
		close(sub.ch)
	}
	r.subscribers = nil
}
