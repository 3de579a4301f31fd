package history

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/homelink-core/internal/device"
)

// Measurement names.
const (
	measurementState  = "device_state"
	measurementStatus = "device_status"
)

// RecordState writes a confirmed device state to the history bucket.
//
// The write is non-blocking; points are batched and sent asynchronously.
// A no-op when disconnected.
func (r *Recorder) RecordState(deviceID, roomID string, state device.State, at time.Time) {
	if !r.IsConnected() {
		return
	}

	fields := stateFields(state)
	if fields == nil {
		return
	}

	point := write.NewPoint(
		measurementState,
		map[string]string{
			"device_id": deviceID,
			"room_id":   roomID,
		},
		fields,
		at,
	)

	r.writeAPI.WritePoint(point)
}

// RecordStatus writes a device availability change to the history bucket.
func (r *Recorder) RecordStatus(deviceID, roomID string, online bool, at time.Time) {
	if !r.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementStatus,
		map[string]string{
			"device_id": deviceID,
			"room_id":   roomID,
		},
		map[string]interface{}{
			"online": online,
		},
		at,
	)

	r.writeAPI.WritePoint(point)
}

// stateFields maps a device state to InfluxDB point fields.
// Returns nil for states with no numeric or boolean projection.
func stateFields(state device.State) map[string]interface{} {
	switch s := state.(type) {
	case device.On:
		return map[string]interface{}{"is_on": true}
	case device.Off:
		return map[string]interface{}{"is_on": false}
	case device.Numeric:
		return map[string]interface{}{"value": s.Value}
	default:
		return nil
	}
}
