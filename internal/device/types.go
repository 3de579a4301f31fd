package device

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeviceType classifies what a device can do.
type DeviceType string

// Supported device types.
const (
	// TypeSwitch is an on/off device (light, fan, socket).
	TypeSwitch DeviceType = "switch"

	// TypeDimmer is a numeric-value device (dimmable light, fan speed).
	TypeDimmer DeviceType = "dimmer"

	// TypeSensor is a read-only device (temperature, humidity).
	TypeSensor DeviceType = "sensor"
)

// IsValid reports whether the device type is one of the supported types.
func (t DeviceType) IsValid() bool {
	switch t {
	case TypeSwitch, TypeDimmer, TypeSensor:
		return true
	default:
		return false
	}
}

// ResponseStatus tracks the command-confirmation cycle for a device.
// Transitions: Idle -> Waiting (command sent) -> Confirmed (event received)
// -> Waiting again on the next command.
type ResponseStatus string

// Response status values.
const (
	StatusIdle      ResponseStatus = "idle"
	StatusWaiting   ResponseStatus = "waiting"
	StatusConfirmed ResponseStatus = "confirmed"
)

// IsValid reports whether the response status is a known value.
func (s ResponseStatus) IsValid() bool {
	switch s {
	case StatusIdle, StatusWaiting, StatusConfirmed:
		return true
	default:
		return false
	}
}

// State is the recorded state of a device.
//
// It is a closed union: the only implementations are Off, On, and
// Numeric. Every consumer switches exhaustively over these three.
type State interface {
	stateKind() string
}

// Off is the state of a switchable device that is off.
type Off struct{}

// On is the state of a switchable device that is on.
type On struct{}

// Numeric is the state of a value-carrying device (dimmer level,
// sensor reading).
type Numeric struct {
	Value float64
}

func (Off) stateKind() string     { return "off" }
func (On) stateKind() string      { return "on" }
func (Numeric) stateKind() string { return "numeric" }

// stateJSON is the serialized form of State for SQLite storage.
type stateJSON struct {
	Kind  string   `json:"kind"`
	Value *float64 `json:"value,omitempty"`
}

// EncodeState serializes a State for storage.
func EncodeState(s State) (string, error) {
	var doc stateJSON
	switch st := s.(type) {
	case Off:
		doc.Kind = "off"
	case On:
		doc.Kind = "on"
	case Numeric:
		doc.Kind = "numeric"
		v := st.Value
		doc.Value = &v
	default:
		return "", fmt.Errorf("%w: unknown state %T", ErrInvalidState, s)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshalling state: %w", err)
	}
	return string(data), nil
}

// DecodeState deserializes a stored State.
func DecodeState(data string) (State, error) {
	var doc stateJSON
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	switch doc.Kind {
	case "off":
		return Off{}, nil
	case "on":
		return On{}, nil
	case "numeric":
		if doc.Value == nil {
			return nil, fmt.Errorf("%w: numeric state without value", ErrInvalidState)
		}
		return Numeric{Value: *doc.Value}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidState, doc.Kind)
	}
}

// Device represents a controllable or monitorable entity in the system.
// This matches the database schema in migrations/20260815_120000_initial_schema.up.sql.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Classification
	Type DeviceType `json:"type"`

	// Location
	RoomID string `json:"room_id"`

	// Current state. Mutated both optimistically (user commands) and
	// authoritatively (inbound device events).
	State State `json:"state"`

	// Online is the last reported availability of the device.
	Online bool `json:"online"`

	// ResponseMsg is the last response message from the device, if any.
	ResponseMsg *string `json:"response_msg,omitempty"`

	// ResponseStatus tracks whether a command is awaiting confirmation.
	ResponseStatus ResponseStatus `json:"response_status"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone creates an independent copy of the Device.
// Pointer fields are re-allocated so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // State variants are immutable values, safe to share

	if d.ResponseMsg != nil {
		msg := *d.ResponseMsg
		cpy.ResponseMsg = &msg
	}

	return &cpy
}
