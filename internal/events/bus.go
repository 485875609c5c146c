package events

import (
	"sync"

	"github.com/datallboy/resample/internal/domain"
)

// Bus fans progress events out to channel subscribers.
//
// Delivery is at-most-once: a subscriber whose buffer is full misses the
// event rather than stalling the publisher.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]chan domain.ProgressEvent
	buffer    int
	closed    bool
}

// NewBus creates a bus whose subscriber channels hold up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{
		listeners: make(map[string][]chan domain.ProgressEvent),
		buffer:    buffer,
	}
}

// Subscribe registers a listener on channel. The returned function removes
// the listener and closes its channel; calling it more than once is safe.
func (b *Bus) Subscribe(channel string) (<-chan domain.ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.ProgressEvent, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.listeners[channel] = append(b.listeners[channel], ch)

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(channel, ch) })
	}
}

func (b *Bus) unsubscribe(channel string, ch chan domain.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	listeners := b.listeners[channel]
	for i, listener := range listeners {
		if listener == ch {
			b.listeners[channel] = append(listeners[:i], listeners[i+1:]...)
			close(ch)
			break
		}
	}

	if len(b.listeners[channel]) == 0 {
		delete(b.listeners, channel)
	}
}

// Publish delivers ev to every subscriber of channel.
func (b *Bus) Publish(channel string, ev domain.ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.listeners[channel] {
		select {
		case ch <- ev:
		default:
			// Subscriber is behind, skip
		}
	}
}

// Subscribers returns the number of listeners on channel.
func (b *Bus) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[channel])
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for channel, listeners := range b.listeners {
		for _, ch := range listeners {
			close(ch)
		}
		delete(b.listeners, channel)
	}
}
