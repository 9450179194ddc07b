package shelly

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/logging"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/mqtt"
)

// relayCommand is the payload accepted on shelly/cmd/<ip> topics.
type relayCommand struct {
	Turn    string `json:"turn"` // "on", "off" or "toggle"
	Channel int    `json:"channel"`
}

// commandSubscriber is the broker surface the relay needs. Satisfied by
// *mqtt.Client.
type commandSubscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// CommandRelay forwards relay commands published on the broker to the
// adapter. Integrations that already speak MQTT can drive relays without
// the REST API: publish {"turn":"on"} to shelly/cmd/<ip> and the relay
// resolves the adapter's device ID for that IP from the reconciliation
// snapshot and issues the control call.
//
// Commands for IPs the monitor has never seen are rejected: without a
// snapshot entry there is no adapter identity to address.
type CommandRelay struct {
	client  *Client
	monitor *Monitor
	sub     commandSubscriber
	logger  *logging.Logger
	topic   string
}

// NewCommandRelay creates a relay bound to the shared command topic
// pattern. Call Start to begin receiving commands.
func NewCommandRelay(client *Client, monitor *Monitor, sub commandSubscriber, logger *logging.Logger) *CommandRelay {
	return &CommandRelay{
		client:  client,
		monitor: monitor,
		sub:     sub,
		logger:  logger.With("component", "command_relay"),
		topic:   mqtt.Topics{}.AllDeviceCommands(),
	}
}

// Start subscribes to the command topic. Commands arriving after ctx is
// cancelled are dropped without reaching the adapter.
func (r *CommandRelay) Start(ctx context.Context) error {
	handler := func(topic string, payload []byte) error {
		return r.handle(ctx, topic, payload)
	}
	if err := r.sub.Subscribe(r.topic, 1, handler); err != nil {
		return fmt.Errorf("subscribing to command topic: %w", err)
	}

	r.logger.Info("mqtt command relay started", "topic", r.topic)
	return nil
}

// Close drops the command subscription.
func (r *CommandRelay) Close() error {
	return r.sub.Unsubscribe(r.topic)
}

// handle processes one inbound command message. Returned errors are
// logged by the broker client; they never fail message acknowledgment.
func (r *CommandRelay) handle(ctx context.Context, topic string, payload []byte) error {
	if ctx.Err() != nil {
		return nil
	}

	ip := topic[strings.LastIndexByte(topic, '/')+1:]
	if ip == "" || ip == "+" {
		return fmt.Errorf("command topic %q carries no device IP", topic)
	}

	var cmd relayCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("parsing command for %s: %w", ip, err)
	}

	var target AdapterDevice
	var found bool
	for _, d := range r.monitor.Snapshot() {
		if d.IP == ip {
			target, found = d, true
			break
		}
	}
	if !found {
		return fmt.Errorf("no adapter device with IP %s", ip)
	}

	var on bool
	switch cmd.Turn {
	case "on":
		on = true
	case "off":
		on = false
	case "toggle":
		on = !target.State
	default:
		return fmt.Errorf("unknown turn value %q for %s", cmd.Turn, ip)
	}

	if err := r.client.Control(ctx, target.ID, cmd.Channel, on); err != nil {
		return fmt.Errorf("relaying command for %s: %w", ip, err)
	}

	r.logger.Info("broker command relayed",
		"ip", ip, "adapter_id", target.ID, "turn", cmd.Turn, "channel", cmd.Channel)
	return nil
}
