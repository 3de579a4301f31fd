package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/homelink-core/internal/device"
)

// Wire actions for command payloads.
const (
	actionOn           = "ON"
	actionOff          = "OFF"
	actionSetValue     = "SET_VALUE"
	actionRequestState = "REQUEST_STATE"
)

// commandPayload is the wire shape of a device command.
// Value is present only for SET_VALUE.
type commandPayload struct {
	Action string   `json:"action"`
	Value  *float64 `json:"value,omitempty"`
}

// statePayload is the wire shape of a device state report.
// If isOn is present it determines On/Off regardless of value;
// otherwise value determines a numeric state; otherwise the
// payload is invalid.
type statePayload struct {
	IsOn  *bool    `json:"isOn,omitempty"`
	Value *float64 `json:"value,omitempty"`
	Msg   *string  `json:"msg,omitempty"`
}

// statusPayload is the wire shape of a device availability report.
type statusPayload struct {
	Online bool `json:"online"`
}

// EncodeCommand serializes a Command to its wire payload.
//
// Encoding is total for the closed set of command variants; an unknown
// variant is a programming error and is reported, never sent.
func EncodeCommand(cmd Command) ([]byte, error) {
	payload := commandPayload{}

	switch c := cmd.(type) {
	case TurnOn:
		payload.Action = actionOn
	case TurnOff:
		payload.Action = actionOff
	case SetValue:
		payload.Action = actionSetValue
		v := c.Value
		payload.Value = &v
	case RequestState:
		payload.Action = actionRequestState
	default:
		return nil, fmt.Errorf("%w: unknown command %T", ErrInvalidCommand, cmd)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return data, nil
}

// DecodeStatePayload parses an inbound state report.
//
// Decoding is partial: malformed JSON or a payload carrying neither isOn
// nor value yields ok=false. Errors never escape to the caller - the
// subscriber drops undecodable messages silently.
func DecodeStatePayload(data []byte) (state device.State, msg *string, ok bool) {
	var payload statePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, false
	}

	switch {
	case payload.IsOn != nil:
		// isOn takes precedence over value
		if *payload.IsOn {
			return device.On{}, payload.Msg, true
		}
		return device.Off{}, payload.Msg, true
	case payload.Value != nil:
		return device.Numeric{Value: *payload.Value}, payload.Msg, true
	default:
		return nil, nil, false
	}
}

// DecodeStatusPayload parses an inbound availability report.
//
// Decoding is partial: malformed JSON or a payload without the online
// field yields ok=false.
func DecodeStatusPayload(data []byte) (online, ok bool) {
	// Online is required; decode into a pointer to distinguish a
	// missing field from an explicit false.
	var payload struct {
		Online *bool `json:"online"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return false, false
	}
	if payload.Online == nil {
		return false, false
	}
	return *payload.Online, true
}

// encodeAppStatus builds the application online/offline announcement
// used for the last-will message and graceful status publishes.
func encodeAppStatus(online bool) []byte {
	if online {
		return []byte(`{"online":true}`)
	}
	return []byte(`{"online":false}`)
}
