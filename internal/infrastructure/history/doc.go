// Package history records device state and availability changes to
// InfluxDB.
//
// Recording is optional (config influxdb.enabled) and best-effort:
// writes are non-blocking and batched, and a recorder failure never
// blocks or fails a device operation. The SQLite store remains the
// source of truth for current state; this package only keeps the
// time-series trail.
//
// Write errors are delivered asynchronously through the SetOnError
// callback. Connection and health check errors are returned directly.
package history
