package gateway

// Command is an instruction for a device.
//
// It is a closed union: the only implementations are TurnOn, TurnOff,
// SetValue, and RequestState. Commands are constructed transiently per
// invocation and never persisted.
type Command interface {
	commandAction() string
}

// TurnOn switches a switchable device on.
type TurnOn struct{}

// TurnOff switches a switchable device off.
type TurnOff struct{}

// SetValue sets the level of a numeric-value device.
type SetValue struct {
	Value float64
}

// RequestState asks a device to report its current state.
type RequestState struct{}

func (TurnOn) commandAction() string       { return actionOn }
func (TurnOff) commandAction() string      { return actionOff }
func (SetValue) commandAction() string     { return actionSetValue }
func (RequestState) commandAction() string { return actionRequestState }
