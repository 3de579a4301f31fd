package gateway

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device command", topics.DeviceCommand("home-1", "kitchen", "light-3"), "homelink/home-1/kitchen/light-3/cmd"},
		{"device state", topics.DeviceState("home-1", "kitchen", "light-3"), "homelink/home-1/kitchen/light-3/state"},
		{"device status", topics.DeviceStatus("home-1", "kitchen", "light-3"), "homelink/home-1/kitchen/light-3/status"},
		{"all states", topics.AllDeviceStates(), "homelink/+/+/+/state"},
		{"all statuses", topics.AllDeviceStatuses(), "homelink/+/+/+/status"},
		{"app status", topics.AppStatus(), "homelink/app/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	topic := Topics{}.DeviceState("home-1", "kitchen", "light-3")

	homeID, ok := ParseHomeID(topic)
	if !ok || homeID != "home-1" {
		t.Errorf("ParseHomeID(%q) = %q, %v; want home-1, true", topic, homeID, ok)
	}

	roomID, ok := ParseRoomID(topic)
	if !ok || roomID != "kitchen" {
		t.Errorf("ParseRoomID(%q) = %q, %v; want kitchen, true", topic, roomID, ok)
	}

	deviceID, ok := ParseDeviceID(topic)
	if !ok || deviceID != "light-3" {
		t.Errorf("ParseDeviceID(%q) = %q, %v; want light-3, true", topic, deviceID, ok)
	}
}

func TestParseDeviceIDMalformed(t *testing.T) {
	tests := []struct {
		name  string
		topic string
	}{
		{"empty", ""},
		{"base only", "homelink"},
		{"two segments", "homelink/home-1"},
		{"three segments", "homelink/home-1/kitchen"},
		{"empty device segment", "homelink/home-1/kitchen//state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if id, ok := ParseDeviceID(tt.topic); ok {
				t.Errorf("ParseDeviceID(%q) = %q, true; want ok=false", tt.topic, id)
			}
		})
	}
}
