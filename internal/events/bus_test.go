package events

import (
	"testing"

	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/logging"
)

func testBus() *Bus {
	return NewBus(logging.Default())
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := testBus()

	var received []Event
	bus.Subscribe(func(e Event) {
		received = append(received, e)
	})

	bus.Publish(DeviceUpdate, map[string]any{"id": "dev-001"})

	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
	if received[0].Type != DeviceUpdate {
		t.Errorf("Type = %q, want %q", received[0].Type, DeviceUpdate)
	}
}

func TestSubscribeWithTypeFilter(t *testing.T) {
	bus := testBus()

	var matched, all int
	bus.Subscribe(func(Event) { matched++ }, DeviceUpdate)
	bus.Subscribe(func(Event) { all++ })

	bus.Publish(DeviceUpdate, nil)
	bus.Publish("somethingElse", nil)

	if matched != 1 {
		t.Errorf("filtered subscriber got %d events, want 1", matched)
	}
	if all != 2 {
		t.Errorf("unfiltered subscriber got %d events, want 2", all)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := testBus()

	var count int
	id := bus.Subscribe(func(Event) { count++ })

	bus.Publish(DeviceUpdate, nil)
	bus.Unsubscribe(id)
	bus.Publish(DeviceUpdate, nil)

	if count != 1 {
		t.Errorf("received %d events after unsubscribe, want 1", count)
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", bus.SubscriberCount())
	}

	// Unsubscribing twice is harmless
	bus.Unsubscribe(id)
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := testBus()

	var delivered bool
	bus.Subscribe(func(Event) { panic("broken subscriber") })
	bus.Subscribe(func(Event) { delivered = true })

	bus.Publish(DeviceUpdate, nil)

	if !delivered {
		t.Error("second subscriber should receive the event despite the first panicking")
	}
}

func TestPublishWithNoSubscribers(t *testing.T) {
	bus := testBus()

	// Must not panic or block
	bus.Publish(DeviceUpdate, nil)
}
