package mqtt

// topicPrefix roots every shellyd topic. The hierarchy is flat:
// shelly/{category}/{ip}, keyed by IP because that is the stable
// identity of a device on the local network.
const topicPrefix = "shelly"

// Topics builds the topic names shellyd publishes and subscribes to,
// so the naming scheme lives in one place.
type Topics struct{}

// DeviceState is where the reconciliation loop mirrors observed relay
// state, e.g. shelly/state/192.168.1.40.
func (Topics) DeviceState(ip string) string {
	return topicPrefix + "/state/" + ip
}

// DeviceEnergy is where the reconciliation loop mirrors power and
// energy readings, e.g. shelly/energy/192.168.1.40.
func (Topics) DeviceEnergy(ip string) string {
	return topicPrefix + "/energy/" + ip
}

// DeviceCommand is where integrations publish relay commands for one
// device, e.g. shelly/cmd/192.168.1.40.
func (Topics) DeviceCommand(ip string) string {
	return topicPrefix + "/cmd/" + ip
}

// AllDeviceCommands matches commands for every device; the command
// relay subscribes with this pattern (shelly/cmd/+).
func (Topics) AllDeviceCommands() string {
	return topicPrefix + "/cmd/+"
}

// SystemStatus carries shellyd's own online/offline announcements and
// doubles as the last-will topic (shelly/system/status).
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}
