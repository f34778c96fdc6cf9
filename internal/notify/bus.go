// Package notify provides the in-process fan-out raised after each
// change-log append. It is a local signal for same-process reactive UI
// updates, not a network channel.
package notify

import (
	"sync"

	"github.com/chatvault/core/internal/models"
)

// Event describes one change-log append.
type Event struct {
	EventID    models.UUID          `json:"event_id"`
	EntityType models.EntityType    `json:"entity_type"`
	EntityID   models.UUID          `json:"entity_id"`
	Operation  models.SyncOperation `json:"operation"`
	UserID     models.UUID          `json:"user_id"`
	Timestamp  int64                `json:"timestamp"`
}

// Bus fans Events out to in-process subscribers. Publishing never blocks:
// a subscriber that falls behind misses events rather than stalling writes.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
	buffer int
}

// NewBus creates a Bus. Each subscriber gets a channel buffered to buffer
// events; non-positive selects a default of 64.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber. The returned cancel function removes the
// subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber with room in its buffer.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
