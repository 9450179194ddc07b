package shelly

// AdapterDevice is one device as reported by the discovery adapter.
// The adapter keys devices by its own ID; the IP is what ties a report
// back to a local device row.
type AdapterDevice struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	IP     string  `json:"ip"`
	Type   string  `json:"type"`
	Online bool    `json:"online"`
	State  bool    `json:"state"`
	Meters []Meter `json:"meters,omitempty"`
}

// Meter is one power meter channel of an adapter-reported device.
type Meter struct {
	Power float64 `json:"power"`
	Total float64 `json:"total"`
}

// PowerWatts returns the instantaneous power draw of the first meter,
// or 0 for devices without metering.
func (d AdapterDevice) PowerWatts() float64 {
	if len(d.Meters) == 0 {
		return 0
	}
	return d.Meters[0].Power
}
