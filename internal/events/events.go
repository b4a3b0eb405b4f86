// Package events provides the in-process event bus used to broadcast run
// lifecycle changes to subscribers (websocket streams, logs).
package events

import (
	"sync"
	"time"
)

// EventType identifies a class of system event.
type EventType string

// Run lifecycle events.
const (
	RunStarted      EventType = "run_started"
	RunStageChanged EventType = "run_stage_changed"
	RunCompleted    EventType = "run_completed"
	RunFailed       EventType = "run_failed"
)

// Event is one published event instance.
type Event struct {
	Type EventType   `json:"type"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data"`
}

// Bus is a simple fan-out event bus. Publish never blocks: slow subscribers
// drop events rather than stalling the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns its channel plus an
// unsubscribe function.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, buffer)
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

// Publish broadcasts an event to all subscribers.
func (b *Bus) Publish(eventType EventType, data interface{}) {
	event := Event{Type: eventType, At: time.Now().UTC(), Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full; drop rather than block the run.
		}
	}
}
