package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidDeviceType is returned when a device type is not recognised.
	ErrInvalidDeviceType = errors.New("device: invalid type")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidRoomID is returned when a room identifier is missing or malformed.
	ErrInvalidRoomID = errors.New("device: invalid room id")

	// ErrInvalidState is returned when state encoding or decoding fails.
	ErrInvalidState = errors.New("device: invalid state")
)
