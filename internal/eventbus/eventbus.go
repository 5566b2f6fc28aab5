// Package eventbus is a handler-based publish/subscribe bus used to notify
// the mapping engine of mapping CRUD events. It is adapted from the
// teacher's channel-subscriber pubsub (internal/services/pubsub) but the
// subscribe call takes a handler function directly and returns an explicit
// unsubscribe handle, per the DESIGN NOTES requirement that cancellation
// remove a handler without races.
package eventbus

import "sync"

// EventType identifies a kind of system event.
type EventType string

const (
	EventMappingCreated EventType = "MAPPING_CREATED"
	EventMappingUpdated EventType = "MAPPING_UPDATED"
	EventMappingDeleted EventType = "MAPPING_DELETED"
)

// Event carries an EventType plus an arbitrary data payload (e.g. the
// mapping ID that changed).
type Event struct {
	Type EventType
	Data any
}

// Handler is invoked synchronously by Publish for each subscriber of the
// event's type. Handlers must not block for long; the mapping engine's
// handler runs its Reload inline, inside Publish.
type Handler func(Event)

// Unsubscribe removes a previously registered handler. Calling it more than
// once is a no-op.
type Unsubscribe func()

// Bus is a single, per-instance event bus; there is no process-wide
// singleton (per DESIGN NOTES).
type Bus struct {
	mu          sync.Mutex
	subscribers map[EventType]map[int]Handler
	nextID      int
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[EventType]map[int]Handler)}
}

// Subscribe registers handler for eventType and returns a handle to remove
// it later. Safe to call concurrently with Publish.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subscribers[eventType][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers[eventType], id)
		})
	}
}

// Publish invokes every handler registered for event.Type. Handlers are
// snapshotted under the lock so a handler that unsubscribes itself (or
// another handler) mid-publish never deadlocks or races.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subscribers[event.Type]))
	for _, h := range b.subscribers[event.Type] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

// SubscriberCount returns the number of active subscriptions for eventType,
// mainly useful in tests.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[eventType])
}
