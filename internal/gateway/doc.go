// Package gateway provides the MQTT device communication layer for
// HomeLink Core.
//
// The gateway owns a single broker session and everything that rides on
// it: the connection state machine with background reconnection, the
// topic naming scheme, the JSON wire codec for commands and device
// reports, and fan-out of inbound device events to per-device
// observers.
//
// The package is transport-only. It does not read or write the device
// store; reconciliation of optimistic writes against confirmed device
// reports lives in the reconcile package, which consumes this package
// through small interfaces.
package gateway
