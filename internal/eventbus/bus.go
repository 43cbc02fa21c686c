// Package eventbus fans simulation events out to live subscribers, mainly
// the websocket stream and the monitor. Delivery is best effort; the sqlite
// log is the durable record.
package eventbus

import (
	"context"
	"sync"

	"info_arena/internal/domain"
)

type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan domain.Event
	nextID int
	buffer int
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		subs:   make(map[int]chan domain.Event),
		buffer: buffer,
	}
}

// Subscribe returns a receive channel and a cancel func. The channel closes
// on cancel.
func (b *Bus) Subscribe() (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan domain.Event, b.buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Append publishes to every subscriber without blocking. A subscriber that
// cannot keep up drops events rather than stalling the simulation; it
// satisfies the same sink interface the durable stores do.
func (b *Bus) Append(_ context.Context, event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
