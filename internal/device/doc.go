// Package device provides the device model and persistence for HomeLink Core.
//
// A Device is the durable record behind everything the user sees: its
// recorded State is written optimistically when a command is issued and
// authoritatively when the hardware confirms. The ResponseStatus field
// tracks that cycle (idle -> waiting -> confirmed).
//
// # Components
//
//   - Device, State (closed union: Off, On, Numeric), DeviceType
//   - Repository: SQLite persistence behind a narrow CRUD interface
//   - Registry: cached, thread-safe wrapper over the Repository
//
// The Registry is the single source of truth consumed by the
// reconciliation engine; nothing else writes device rows.
package device
