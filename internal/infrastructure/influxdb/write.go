package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteRelayState records a relay on/off transition. The reconciliation
// loop calls this whenever it observes a device change state, so switch
// history can be charted alongside power draw. Non-blocking; the point
// is batched and sent asynchronously.
func (c *Client) WriteRelayState(deviceID, ip string, on bool) {
	if !c.writable() {
		return
	}

	state := 0
	if on {
		state = 1
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"relay_state",
		map[string]string{"device_id": deviceID, "ip": ip},
		map[string]any{"on": state},
		time.Now(),
	))
}

// WriteEnergyMetric records a power reading, with cumulative energy when
// the meter reports one (pass 0 for unmetered devices).
func (c *Client) WriteEnergyMetric(deviceID string, powerWatts, energyKWh float64) {
	if !c.writable() {
		return
	}

	fields := map[string]any{"power_watts": powerWatts}
	if energyKWh > 0 {
		fields["energy_kwh"] = energyKWh
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"energy",
		map[string]string{"device_id": deviceID},
		fields,
		time.Now(),
	))
}
