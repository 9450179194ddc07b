package events

import (
	"sync"

	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/logging"
)

// DeviceUpdate is the event type emitted when a device changes state,
// either through a user toggle or the background reconciliation loop.
const DeviceUpdate = "deviceUpdate"

// Event is a single published notification.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block for long.
type Handler func(Event)

type subscription struct {
	types   map[string]struct{} // nil matches every event type
	handler Handler
}

// Bus is a synchronous in-process event fan-out. Events are delivered to
// all current subscribers at publish time; there is no persistence and a
// late subscriber misses earlier events. A panicking handler is isolated
// and logged so the remaining subscribers still receive the event.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
	logger *logging.Logger
}

// NewBus creates an event bus.
func NewBus(logger *logging.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]subscription),
		logger: logger.With("component", "events"),
	}
}

// Subscribe registers a handler for the given event types. An empty type
// list subscribes to every event. Returns a handle for Unsubscribe.
func (b *Bus) Subscribe(handler Handler, types ...string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var filter map[string]struct{}
	if len(types) > 0 {
		filter = make(map[string]struct{}, len(types))
		for _, t := range types {
			filter[t] = struct{}{}
		}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{types: filter, handler: handler}
	return id
}

// Unsubscribe removes a subscription. Unknown handles are ignored.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Publish delivers an event synchronously to every matching subscriber.
func (b *Bus) Publish(eventType string, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.types != nil {
			if _, ok := sub.types[eventType]; !ok {
				continue
			}
		}
		handlers = append(handlers, sub.handler)
	}
	b.mu.RUnlock()

	event := Event{Type: eventType, Payload: payload}
	for _, h := range handlers {
		b.deliver(h, event)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// deliver invokes one handler, recovering panics so a broken subscriber
// cannot stop delivery to the rest.
func (b *Bus) deliver(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic",
				"event_type", event.Type,
				"panic", r,
			)
		}
	}()
	h(event)
}
