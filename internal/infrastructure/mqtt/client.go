package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for shellyd's two broker roles: fanning
// observed device state out to other home-automation consumers, and
// accepting inbound relay commands for the command relay.
//
// Subscriptions survive reconnects: the client tracks them and
// re-subscribes whenever the broker connection is re-established. All
// methods are safe for concurrent use.
type Client struct {
	inner pahomqtt.Client
	cfg   config.MQTTConfig

	subMu sync.RWMutex
	subs  map[string]subscription

	stateMu   sync.RWMutex
	connected bool

	callbackMu   sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger is the optional logging hook for handler errors and panics.
// *logging.Logger satisfies it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription remembers enough to re-subscribe after a reconnect.
type subscription struct {
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages. The
// paho library invokes handlers on their own goroutines; a returned
// error is logged and does not affect message acknowledgment.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker, registers the last-will offline status, and
// announces shellyd as online. Auto-reconnect with backoff is handled by
// the paho layer; tracked subscriptions are restored on every reconnect.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:  cfg,
		subs: make(map[string]subscription),
	}

	opts := buildOptions(cfg)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.brokerConnected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.brokerLost(err) })

	c.inner = pahomqtt.NewClient(opts)
	token := c.inner.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect callback runs asynchronously; mark connected here so
	// the client is usable as soon as Connect returns.
	c.stateMu.Lock()
	c.connected = true
	c.stateMu.Unlock()

	return c, nil
}

// brokerConnected runs on initial connect and on every reconnect.
func (c *Client) brokerConnected() {
	c.stateMu.Lock()
	c.connected = true
	c.stateMu.Unlock()

	c.subMu.RLock()
	for topic, sub := range c.subs {
		c.inner.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.subMu.RUnlock()

	c.inner.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
		statusPayload(c.cfg.Broker.ClientID, "online", ""))

	c.callbackMu.RLock()
	notify := c.onConnect
	c.callbackMu.RUnlock()
	if notify != nil {
		notify()
	}
}

// brokerLost runs when the connection drops; paho keeps reconnecting in
// the background.
func (c *Client) brokerLost(err error) {
	c.stateMu.Lock()
	c.connected = false
	c.stateMu.Unlock()

	c.callbackMu.RLock()
	notify := c.onDisconnect
	c.callbackMu.RUnlock()
	if notify != nil {
		notify(err)
	}
}

// Close announces a graceful shutdown (distinct from the crash
// last-will) and disconnects.
func (c *Client) Close() error {
	if c.inner == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.inner.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
			statusPayload(c.cfg.Broker.ClientID, "offline", "graceful_shutdown"))
		token.WaitTimeout(publishTimeout)
	}

	c.inner.Disconnect(disconnectQuiesceMs)

	c.stateMu.Lock()
	c.connected = false
	c.stateMu.Unlock()
	return nil
}

// HealthCheck reports whether the broker connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.connected && c.inner.IsConnected()
}

// SetOnConnect registers a callback for initial connect and reconnects.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect registers a callback for lost connections.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger registers a logger for handler errors and recovered panics.
// Without one they are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.callbackMu.Lock()
	c.logger = logger
	c.callbackMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.callbackMu.RLock()
	defer c.callbackMu.RUnlock()
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho's signature, adding panic
// recovery so one bad message cannot kill the receive loop.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
