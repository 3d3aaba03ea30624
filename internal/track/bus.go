package track

import (
	"sync"

	"github.com/google/uuid"
)

// Bus is a broadcast stream. Subscribers get buffered channels; a subscriber
// that falls behind loses events rather than blocking the publisher.
type Bus[T any] struct {
	mu     sync.Mutex
	subs   map[string]chan T
	closed bool
}

// NewBus returns an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[string]chan T)}
}

// Subscribe registers a new subscriber and returns its id and channel.
func (b *Bus[T]) Subscribe() (string, <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan T, 128)
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe drops the subscriber and closes its channel.
func (b *Bus[T]) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers v to every subscriber without blocking.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Close closes every subscriber channel and rejects new publishes.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
