package orchestrator

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// EventBus fans scheduler events out to any number of subscribers.
// With no subscribers, Emit does nothing.
type EventBus struct {
	mu           sync.RWMutex
	subs         []chan Event
	closed       bool
	droppedCount atomic.Uint64
}

// NewEventBus creates an EventBus with no subscribers.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a new subscriber with the given buffer size.
// The channel is closed when the bus is closed.
func (b *EventBus) Subscribe(bufferSize int) <-chan Event {
	if bufferSize < 0 {
		bufferSize = 0
	}
	ch := make(chan Event, bufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// HasSubscribers reports whether anyone is listening.
func (b *EventBus) HasSubscribers() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs) > 0
}

// Emit sends an event to every subscriber.
// If a subscriber's channel is full, it tries with a timeout before dropping the event for that subscriber.
func (b *EventBus) Emit(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, ch := range b.subs {
		// Try immediate send first
		select {
		case ch <- event:
			continue
		default:
		}

		// Give the receiver 100ms to drain
		select {
		case ch <- event:
		case <-time.After(100 * time.Millisecond):
			count := b.droppedCount.Add(1)
			if count%10 == 1 { // Log every 10th drop to avoid spam
				log.Printf("[scheduler] WARNING: event channel full, dropped event (total dropped: %d): type=%s step=%s", count, event.Type, event.StepID)
			}
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (b *EventBus) DroppedCount() uint64 {
	return b.droppedCount.Load()
}

// Close closes every subscriber channel. Later emits are ignored.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
