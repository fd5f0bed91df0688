package bus

import (
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus. Subscriptions are
// scoped to a single tenant and optionally filtered by kind prefix, so one
// tenant's traffic is never visible to another tenant's subscribers.
// Delivery is at-most-once per subscriber with no replay buffer: a
// subscriber that connects after publication must backfill from the store.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	tenantID   string
	kindPrefix string
	ch         chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends an event to all subscribers of evt.TenantID whose kind
// prefix matches evt.Kind.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.tenantID != evt.TenantID {
			continue
		}
		if !strings.HasPrefix(evt.Kind, sub.kindPrefix) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop event if subscriber is full (non-blocking).
		}
	}
}

// Subscribe returns a channel that receives the given tenant's events
// matching the kind prefix (empty prefix matches everything). bufSize
// controls the channel buffer. Returns the channel and an unsubscribe
// function. Every subscriber gets its own independent delivery.
func (b *Bus) Subscribe(tenantID, kindPrefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{tenantID: tenantID, kindPrefix: kindPrefix, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
