package history

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/homelink-core/internal/device"
	"github.com/nerrad567/homelink-core/internal/infrastructure/config"
)

func TestConnectDisabled(t *testing.T) {
	cfg := config.InfluxDBConfig{Enabled: false}

	if _, err := Connect(cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestStateFields(t *testing.T) {
	tests := []struct {
		name  string
		state device.State
		want  map[string]interface{}
	}{
		{"on", device.On{}, map[string]interface{}{"is_on": true}},
		{"off", device.Off{}, map[string]interface{}{"is_on": false}},
		{"numeric", device.Numeric{Value: 22.5}, map[string]interface{}{"value": 22.5}},
		{"nil state", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stateFields(tt.state)
			if len(got) != len(tt.want) {
				t.Fatalf("stateFields() = %#v, want %#v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("field %q = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestRecordStateDisconnected(t *testing.T) {
	r := &Recorder{}

	// Must be a silent no-op, never a panic.
	r.RecordState("light-1", "kitchen", device.On{}, time.Now())
	r.RecordStatus("light-1", "kitchen", true, time.Now())
	r.Flush()
}
