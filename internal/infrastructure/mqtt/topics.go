package mqtt

import "fmt"

// TopicPrefix is the root of every topic the assistant bridge uses.
//
// Device topics follow graylogic/assistant/device/{id}/{kind}, where kind is
// config (retained device description), state (retained current state) or
// command (execution requests published by the bridge).
const TopicPrefix = "graylogic/assistant"

// Topics provides builders for the assistant bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceCommand("light-kitchen")
//	// Returns: "graylogic/assistant/device/light-kitchen/command"
type Topics struct{}

// DeviceConfig returns the retained description topic for a device.
func (Topics) DeviceConfig(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/config", TopicPrefix, deviceID)
}

// DeviceState returns the retained state topic for a device.
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, deviceID)
}

// DeviceCommand returns the topic the bridge publishes execution requests to.
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/command", TopicPrefix, deviceID)
}

// Status returns the bridge's retained online/offline status topic.
func (Topics) Status() string {
	return TopicPrefix + "/status"
}

// AllDeviceConfigs matches every device description.
//
// Pattern: graylogic/assistant/device/+/config
func (Topics) AllDeviceConfigs() string {
	return TopicPrefix + "/device/+/config"
}

// AllDeviceStates matches every device state.
//
// Pattern: graylogic/assistant/device/+/state
func (Topics) AllDeviceStates() string {
	return TopicPrefix + "/device/+/state"
}

// DeviceIDFromTopic extracts the device id from a device topic. It returns
// false for topics outside graylogic/assistant/device/{id}/{kind}.
func (Topics) DeviceIDFromTopic(topic string) (id, kind string, ok bool) {
	const prefix = TopicPrefix + "/device/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return "", "", false
	}
	rest := topic[len(prefix):]
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i] == '/' {
			id, kind = rest[:i], rest[i+1:]
			if id == "" || kind == "" {
				return "", "", false
			}
			return id, kind, true
		}
	}
	return "", "", false
}
