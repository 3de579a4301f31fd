package gateway

import "errors"

// Domain-specific errors for gateway operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("gateway: client not connected")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("gateway: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("gateway: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("gateway: subscribe failed")

	// ErrInvalidCommand is returned when a command cannot be encoded.
	ErrInvalidCommand = errors.New("gateway: invalid command")
)
