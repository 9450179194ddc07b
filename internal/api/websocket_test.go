package api

import (
	"encoding/json"
	"testing"

	"github.com/damianarielmauro/Shelly-App/internal/events"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/config"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/logging"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, logging.Default())
}

// newHubClient builds a client without a network connection; only the
// send channel is exercised.
func newHubClient(hub *Hub) *WSClient {
	return &WSClient{
		hub:    hub,
		send:   make(chan []byte, wsSendBufferSize),
		filter: make(map[string]struct{}),
	}
}

func TestHubBroadcast_UnfilteredClientReceivesAll(t *testing.T) {
	hub := testHub(t)
	client := newHubClient(hub)
	hub.Register(client)

	hub.Broadcast(events.DeviceUpdate, map[string]string{"id": "dev-1"})

	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decoding broadcast: %v", err)
		}
		if msg.Type != WSTypeEvent || msg.EventType != events.DeviceUpdate {
			t.Errorf("msg = %+v", msg)
		}
	default:
		t.Fatal("client with no filter should receive every event")
	}
}

func TestHubBroadcast_SubscriptionNarrowsStream(t *testing.T) {
	hub := testHub(t)
	client := newHubClient(hub)
	client.filter["other.channel"] = struct{}{}
	hub.Register(client)

	hub.Broadcast(events.DeviceUpdate, nil)

	select {
	case <-client.send:
		t.Fatal("filtered client should not receive off-channel events")
	default:
	}

	hub.Broadcast("other.channel", nil)
	select {
	case <-client.send:
	default:
		t.Fatal("filtered client should receive its channel")
	}
}

func TestHubUnregister(t *testing.T) {
	hub := testHub(t)
	client := newHubClient(hub)
	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() after unregister = %d, want 0", hub.ClientCount())
	}

	// A second unregister must not panic on the closed channel
	hub.Unregister(client)

	// Broadcast to the departed client must not panic either
	hub.Broadcast(events.DeviceUpdate, nil)
}

func TestDispatch_SubscribeAndUnsubscribe(t *testing.T) {
	hub := testHub(t)
	client := newHubClient(hub)
	hub.Register(client)

	client.dispatch([]byte(`{"type":"subscribe","id":"1","payload":{"channels":["deviceUpdate"]}}`))

	if !client.receives(events.DeviceUpdate) {
		t.Error("client should receive subscribed channel")
	}
	if client.receives("room.update") {
		t.Error("subscribed client should no longer receive other channels")
	}

	var ack WSMessage
	select {
	case data := <-client.send:
		if err := json.Unmarshal(data, &ack); err != nil {
			t.Fatalf("decoding ack: %v", err)
		}
		if ack.Type != WSTypeResponse || ack.ID != "1" {
			t.Errorf("ack = %+v", ack)
		}
	default:
		t.Fatal("subscribe should be acknowledged")
	}

	client.dispatch([]byte(`{"type":"unsubscribe","id":"2","payload":{"channels":["deviceUpdate"]}}`))

	// An emptied filter readmits everything
	if !client.receives("room.update") {
		t.Error("client with emptied filter should receive every channel")
	}
}

func TestDispatch_PingAndBadFrames(t *testing.T) {
	hub := testHub(t)
	client := newHubClient(hub)
	hub.Register(client)

	reply := func() WSMessage {
		t.Helper()
		var msg WSMessage
		select {
		case data := <-client.send:
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("decoding reply: %v", err)
			}
		default:
			t.Fatal("expected a reply frame")
		}
		return msg
	}

	client.dispatch([]byte(`{"type":"ping","id":"7"}`))
	if msg := reply(); msg.Type != WSTypePong || msg.ID != "7" {
		t.Errorf("ping reply = %+v", msg)
	}

	client.dispatch([]byte(`not json`))
	if msg := reply(); msg.Type != WSTypeError {
		t.Errorf("bad frame reply = %+v", msg)
	}

	client.dispatch([]byte(`{"type":"shutdown"}`))
	if msg := reply(); msg.Type != WSTypeError {
		t.Errorf("unknown type reply = %+v", msg)
	}
}

func TestEnqueueAfterShutdownIsDropped(t *testing.T) {
	hub := testHub(t)
	client := newHubClient(hub)

	client.shutdown()
	client.enqueue([]byte("late frame")) // must not panic
	client.shutdown()                    // idempotent
}
