package influxdb

import "errors"

// Sentinel errors, checked by callers with errors.Is.
var (
	// ErrDisabled means the integration is switched off in config.yaml.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed means the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected means the client has been closed or never connected.
	ErrNotConnected = errors.New("influxdb: not connected")
)
