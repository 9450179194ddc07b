package device

import "errors"

var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceIPExists is returned when a device with the same IP already exists.
	ErrDeviceIPExists = errors.New("device ip already exists")

	// ErrRoomNotFound is returned when assigning devices to a room that does not exist.
	ErrRoomNotFound = errors.New("room not found")
)
