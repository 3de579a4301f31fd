package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100
)

// ValidateDevice checks a device for structural validity before persistence.
//
// Identifiers end up as MQTT topic segments, so they must never be empty
// and must never contain the topic path separator.
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidDevice)
	}

	if err := validateIdentifier(d.ID); err != nil {
		return fmt.Errorf("%w: id: %w", ErrInvalidDevice, err)
	}

	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}

	if !d.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceType, d.Type)
	}

	if err := validateIdentifier(d.RoomID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRoomID, err)
	}

	if d.State == nil {
		return fmt.Errorf("%w: state is required", ErrInvalidState)
	}
	if d.ResponseStatus != "" && !d.ResponseStatus.IsValid() {
		return fmt.Errorf("%w: response status %q", ErrInvalidDevice, d.ResponseStatus)
	}

	return nil
}

// validateIdentifier checks that an identifier is usable as a topic segment.
func validateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier is required")
	}
	if strings.ContainsAny(id, "/+#") {
		return fmt.Errorf("identifier %q contains topic separator or wildcard characters", id)
	}
	return nil
}

// GenerateID creates a new UUID for a device.
func GenerateID() string {
	return uuid.New().String()
}
