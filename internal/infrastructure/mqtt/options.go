package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	keepAlive      = 60 * time.Second

	// disconnectQuiesceMs is how long Close waits for in-flight work.
	disconnectQuiesceMs = 1000

	maxQoS = 2
)

// buildOptions translates config.yaml into paho client options: broker
// address (tcp or ssl), credentials, auto-reconnect backoff, and the
// last-will offline announcement other services watch for.
func buildOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	// Retained last-will so subscribers learn about crashes even if they
	// connect after the fact.
	opts.SetWill(Topics{}.SystemStatus(),
		statusPayload(cfg.Broker.ClientID, "offline", "unexpected_disconnect"), 1, true)

	return opts
}

// statusPayload is the JSON body published on shelly/system/status for
// online, graceful-offline, and last-will announcements. Reason is
// omitted when empty.
func statusPayload(clientID, status, reason string) string {
	body := struct {
		Status    string `json:"status"`
		ClientID  string `json:"client_id"`
		Reason    string `json:"reason,omitempty"`
		Timestamp string `json:"timestamp"`
	}{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return `{"status":"` + status + `"}`
	}
	return string(encoded)
}
