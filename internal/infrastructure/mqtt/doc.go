// Package mqtt connects shellyd to a Mosquitto broker.
//
// The broker is an optional side channel with two roles: the
// reconciliation loop mirrors observed relay state and energy readings
// to shelly/state/<ip> and shelly/energy/<ip> so other home-automation
// consumers (Home Assistant, Node-RED, dashboards) can react without
// polling the HTTP API, and the command relay accepts inbound relay
// commands on shelly/cmd/<ip>.
//
// The client auto-reconnects with backoff and restores tracked
// subscriptions after each reconnect. A retained last-will message on
// shelly/system/status lets subscribers detect when shellyd dies.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.DeviceState("192.168.1.40")
//	client.PublishRetained(topic, []byte(`{"is_on":true}`))
package mqtt
