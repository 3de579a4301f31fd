package reconcile

import "errors"

// Domain-specific errors for reconciliation operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotSwitchable is returned when a toggle targets a device that
	// has no on/off semantics.
	ErrNotSwitchable = errors.New("reconcile: device is not switchable")

	// ErrNotNumeric is returned when a value change targets a device
	// that has no numeric level.
	ErrNotNumeric = errors.New("reconcile: device has no numeric value")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("reconcile: engine already started")
)
