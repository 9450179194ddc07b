package shelly

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/damianarielmauro/Shelly-App/internal/events"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/influxdb"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/logging"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/mqtt"
)

// Monitor is the background reconciliation loop. Every poll interval it
// fetches the adapter's device list, diffs it against the last-seen
// snapshot by adapter ID, and publishes a deviceUpdate event for every
// changed device. Changes are optionally mirrored to InfluxDB and MQTT.
//
// The snapshot map is owned by the loop; Snapshot returns a copy for
// readers and may lag the adapter by up to one interval.
type Monitor struct {
	client   *Client
	bus      *events.Bus
	interval time.Duration
	logger   *logging.Logger

	// Optional side channels, nil when disabled.
	influx *influxdb.Client
	mq     *mqtt.Client

	mu       sync.RWMutex
	snapshot map[string]AdapterDevice
}

// NewMonitor creates a reconciliation monitor. The influx and mq clients
// are optional and may be nil.
func NewMonitor(client *Client, bus *events.Bus, interval time.Duration, influx *influxdb.Client, mq *mqtt.Client, logger *logging.Logger) *Monitor {
	return &Monitor{
		client:   client,
		bus:      bus,
		interval: interval,
		influx:   influx,
		mq:       mq,
		logger:   logger.With("component", "monitor"),
		snapshot: make(map[string]AdapterDevice),
	}
}

// Run polls the adapter until the context is cancelled. Individual poll
// failures are absorbed by the client layer (an unreachable adapter
// yields an empty device list), so the loop never terminates on error.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("reconciliation monitor started", "interval", m.interval.String())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("reconciliation monitor stopped")
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// poll runs one reconciliation pass.
func (m *Monitor) poll(ctx context.Context) {
	devices := m.client.ListDevices(ctx)

	for _, d := range devices {
		if d.ID == "" {
			continue
		}

		m.mu.RLock()
		previous, seen := m.snapshot[d.ID]
		m.mu.RUnlock()

		if seen && reflect.DeepEqual(previous, d) {
			continue
		}

		m.mu.Lock()
		m.snapshot[d.ID] = d
		m.mu.Unlock()

		m.bus.Publish(events.DeviceUpdate, d)
		m.mirror(d)
	}
}

// Snapshot returns a copy of the last-seen device map.
func (m *Monitor) Snapshot() map[string]AdapterDevice {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cpy := make(map[string]AdapterDevice, len(m.snapshot))
	for id, d := range m.snapshot {
		cpy[id] = d
	}
	return cpy
}

// mirror pushes a changed device to the optional telemetry channels.
func (m *Monitor) mirror(d AdapterDevice) {
	if m.influx != nil {
		m.influx.WriteRelayState(d.ID, d.IP, d.State)
		if power := d.PowerWatts(); power > 0 {
			m.influx.WriteEnergyMetric(d.ID, power, 0)
		}
	}

	if m.mq != nil && d.IP != "" {
		payload, err := json.Marshal(d)
		if err != nil {
			return
		}
		topics := mqtt.Topics{}
		if err := m.mq.PublishRetained(topics.DeviceState(d.IP), payload); err != nil {
			m.logger.Warn("mqtt state publish failed", "device_id", d.ID, "error", err)
		}
		if power := d.PowerWatts(); power > 0 {
			reading, err := json.Marshal(map[string]any{"power_watts": power})
			if err != nil {
				return
			}
			if err := m.mq.PublishRetained(topics.DeviceEnergy(d.IP), reading); err != nil {
				m.logger.Warn("mqtt energy publish failed", "device_id", d.ID, "error", err)
			}
		}
	}
}
