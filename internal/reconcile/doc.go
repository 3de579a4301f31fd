// Package reconcile converges stored device state with reality.
//
// User actions write an optimistic state to the store immediately
// (marked awaiting confirmation) and publish the matching command
// through the gateway. Devices report back on their state topics; a
// per-device watcher consumes those reports and overwrites the
// optimistic record with the confirmed one. There is no rollback and
// no timeout: a device that never answers simply stays marked as
// awaiting confirmation until it does.
//
// Watchers are attached when a device is created (or at engine start
// for devices already in the store) and detached when the device is
// deleted, so events for a removed device can never resurrect its row.
package reconcile
