package gateway

import (
	"fmt"
	"strings"
)

// Topic structure constants.
//
// All device topics use the scheme: homelink/{homeID}/{roomID}/{deviceID}/{suffix}
// Identifiers are opaque store-assigned strings; the only constraint is
// that they contain no topic separator or wildcard characters.
const (
	// TopicBase is the namespace root for all HomeLink topics.
	TopicBase = "homelink"

	// Topic suffixes for the three message kinds.
	suffixCommand = "cmd"
	suffixState   = "state"
	suffixStatus  = "status"

	// Segment positions within a device topic.
	segmentHome   = 1
	segmentRoom   = 2
	segmentDevice = 3
)

// Topics provides builders for HomeLink MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := gateway.Topics{}
//	cmdTopic := topics.DeviceCommand("home-1", "kitchen", "light-3")
//	// Returns: "homelink/home-1/kitchen/light-3/cmd"
type Topics struct{}

// DeviceCommand returns the topic for commands to a device.
//
// Example: homelink/home-1/kitchen/light-3/cmd
func (Topics) DeviceCommand(homeID, roomID, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", TopicBase, homeID, roomID, deviceID, suffixCommand)
}

// DeviceState returns the topic for state updates from a device.
//
// Example: homelink/home-1/kitchen/light-3/state
func (Topics) DeviceState(homeID, roomID, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", TopicBase, homeID, roomID, deviceID, suffixState)
}

// DeviceStatus returns the topic for availability updates from a device.
//
// Example: homelink/home-1/kitchen/light-3/status
func (Topics) DeviceStatus(homeID, roomID, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", TopicBase, homeID, roomID, deviceID, suffixStatus)
}

// AllDeviceStates returns a pattern matching state updates from every device.
//
// Pattern: homelink/+/+/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/+/+/+/%s", TopicBase, suffixState)
}

// AllDeviceStatuses returns a pattern matching availability updates from every device.
//
// Pattern: homelink/+/+/+/status
func (Topics) AllDeviceStatuses() string {
	return fmt.Sprintf("%s/+/+/+/%s", TopicBase, suffixStatus)
}

// AppStatus returns the application status topic used for the last-will
// message and graceful online/offline announcements.
//
// Topic: homelink/app/status
func (Topics) AppStatus() string {
	return fmt.Sprintf("%s/app/%s", TopicBase, suffixStatus)
}

// ParseHomeID extracts the home identifier from a device topic.
// Returns false if the topic has too few segments.
func ParseHomeID(topic string) (string, bool) {
	return segmentAt(topic, segmentHome)
}

// ParseRoomID extracts the room identifier from a device topic.
// Returns false if the topic has too few segments.
func ParseRoomID(topic string) (string, bool) {
	return segmentAt(topic, segmentRoom)
}

// ParseDeviceID extracts the device identifier from a device topic.
// Returns false if the topic has too few segments.
func ParseDeviceID(topic string) (string, bool) {
	return segmentAt(topic, segmentDevice)
}

// segmentAt returns the topic segment at the given index.
func segmentAt(topic string, index int) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) <= index {
		return "", false
	}
	if parts[index] == "" {
		return "", false
	}
	return parts[index], true
}
