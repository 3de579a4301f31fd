package device

import (
	"errors"
	"strings"
	"testing"
)

// validDevice returns a device that passes validation.
func validDevice() *Device {
	return &Device{
		ID:             "light-1",
		Name:           "Ceiling Light",
		Type:           TypeSwitch,
		RoomID:         "room-1",
		State:          Off{},
		ResponseStatus: StatusIdle,
	}
}

func TestValidateDevice(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Device)
		wantErr error
	}{
		{
			name:   "valid switch",
			mutate: func(*Device) {},
		},
		{
			name:   "valid dimmer",
			mutate: func(d *Device) { d.Type = TypeDimmer; d.State = Numeric{Value: 40} },
		},
		{
			name:    "empty id",
			mutate:  func(d *Device) { d.ID = "" },
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "id with separator",
			mutate:  func(d *Device) { d.ID = "a/b" },
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "id with wildcard",
			mutate:  func(d *Device) { d.ID = "dev+1" },
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "empty name",
			mutate:  func(d *Device) { d.Name = "" },
			wantErr: ErrInvalidName,
		},
		{
			name:    "name too long",
			mutate:  func(d *Device) { d.Name = strings.Repeat("x", maxNameLength+1) },
			wantErr: ErrInvalidName,
		},
		{
			name:    "invalid type",
			mutate:  func(d *Device) { d.Type = "toaster" },
			wantErr: ErrInvalidDeviceType,
		},
		{
			name:    "empty room",
			mutate:  func(d *Device) { d.RoomID = "" },
			wantErr: ErrInvalidRoomID,
		},
		{
			name:    "room with separator",
			mutate:  func(d *Device) { d.RoomID = "up/stairs" },
			wantErr: ErrInvalidRoomID,
		},
		{
			name:    "nil state",
			mutate:  func(d *Device) { d.State = nil },
			wantErr: ErrInvalidState,
		},
		{
			name:    "bad response status",
			mutate:  func(d *Device) { d.ResponseStatus = "pending" },
			wantErr: ErrInvalidDevice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDevice()
			tt.mutate(d)

			err := ValidateDevice(d)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateDevice() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDevice() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDeviceNil(t *testing.T) {
	if err := ValidateDevice(nil); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("ValidateDevice(nil) error = %v, want ErrInvalidDevice", err)
	}
}

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if a == "" || b == "" {
		t.Fatal("GenerateID() returned empty string")
	}
	if a == b {
		t.Error("GenerateID() returned duplicate IDs")
	}
	if strings.Contains(a, "/") {
		t.Errorf("GenerateID() = %q contains topic separator", a)
	}
}
