package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/config"
)

// disconnectedClient builds a client that never dialed a broker, for
// exercising the validation paths.
func disconnectedClient() *Client {
	return &Client{subs: make(map[string]subscription)}
}

func TestPublish_Validation(t *testing.T) {
	client := disconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "shelly/state/192.168.1.40", []byte("x"), 3, ErrInvalidQoS},
		{"oversize payload", "shelly/state/192.168.1.40", bytes.Repeat([]byte("a"), maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "shelly/state/192.168.1.40", []byte("x"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := disconnectedClient()
	noop := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("shelly/cmd/+", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3 error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("shelly/cmd/+", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("shelly/cmd/+", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v, want ErrNotConnected", err)
	}
	if len(client.subs) != 0 {
		t.Errorf("failed subscribes left %d tracked subscriptions", len(client.subs))
	}
}

func TestUnsubscribe_Validation(t *testing.T) {
	client := disconnectedClient()

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("shelly/cmd/+"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		got  string
		want string
	}{
		{topics.DeviceState("192.168.1.40"), "shelly/state/192.168.1.40"},
		{topics.DeviceEnergy("192.168.1.40"), "shelly/energy/192.168.1.40"},
		{topics.DeviceCommand("192.168.1.40"), "shelly/cmd/192.168.1.40"},
		{topics.AllDeviceCommands(), "shelly/cmd/+"},
		{topics.SystemStatus(), "shelly/system/status"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestStatusPayload(t *testing.T) {
	var announced struct {
		Status    string `json:"status"`
		ClientID  string `json:"client_id"`
		Reason    string `json:"reason"`
		Timestamp string `json:"timestamp"`
	}

	offline := statusPayload("shellyd", "offline", "graceful_shutdown")
	if err := json.Unmarshal([]byte(offline), &announced); err != nil {
		t.Fatalf("offline payload is not JSON: %v", err)
	}
	if announced.Status != "offline" || announced.ClientID != "shellyd" || announced.Reason != "graceful_shutdown" {
		t.Errorf("offline payload = %q", offline)
	}
	if announced.Timestamp == "" {
		t.Error("offline payload missing timestamp")
	}

	online := statusPayload("shellyd", "online", "")
	if strings.Contains(online, "reason") {
		t.Errorf("online payload should omit reason: %q", online)
	}
}

func TestBuildOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     1883,
			ClientID: "shellyd",
		},
		Auth: config.MQTTAuthConfig{Username: "shelly", Password: "secret"},
		QoS:  1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}

	opts := buildOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://broker.local:1883" {
		t.Errorf("broker URL = %v, want tcp://broker.local:1883", opts.Servers)
	}
	if opts.ClientID != "shellyd" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "shelly" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if opts.WillTopic != "shelly/system/status" || !opts.WillRetained {
		t.Errorf("will topic = %q retained = %v", opts.WillTopic, opts.WillRetained)
	}
	if !strings.Contains(string(opts.WillPayload), "unexpected_disconnect") {
		t.Errorf("will payload = %q", opts.WillPayload)
	}

	cfg.Broker.TLS = true
	opts = buildOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("TLS scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
}

// recordingLogger captures handler failures routed through SetLogger.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

// fakeMessage satisfies paho's Message interface for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestWrapHandler_RecoversPanic(t *testing.T) {
	client := disconnectedClient()
	logger := &recordingLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("corrupt payload")
	})
	wrapped(nil, fakeMessage{topic: "shelly/cmd/192.168.1.40", payload: []byte("{")})

	if len(logger.errors) != 1 {
		t.Fatalf("recorded %d errors, want 1", len(logger.errors))
	}
}

func TestWrapHandler_LogsHandlerError(t *testing.T) {
	client := disconnectedClient()
	logger := &recordingLogger{}
	client.SetLogger(logger)

	var gotTopic string
	var gotPayload []byte
	wrapped := client.wrapHandler(func(topic string, payload []byte) error {
		gotTopic = topic
		gotPayload = payload
		return errors.New("unknown device")
	})
	wrapped(nil, fakeMessage{topic: "shelly/cmd/192.168.1.40", payload: []byte(`{"turn":"on"}`)})

	if gotTopic != "shelly/cmd/192.168.1.40" || string(gotPayload) != `{"turn":"on"}` {
		t.Errorf("handler saw topic %q payload %q", gotTopic, gotPayload)
	}
	if len(logger.warns) != 1 {
		t.Fatalf("recorded %d warnings, want 1", len(logger.warns))
	}
}

func TestWrapHandler_WithoutLogger(t *testing.T) {
	client := disconnectedClient()

	wrapped := client.wrapHandler(func(string, []byte) error {
		return errors.New("dropped silently")
	})
	// Must not panic with no logger registered.
	wrapped(nil, fakeMessage{topic: "shelly/cmd/192.168.1.40"})
}

var _ pahomqtt.Message = fakeMessage{}
