package device

import "strings"

// ExecutionStatus is the outcome of one command on one device.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "SUCCESS"
	StatusError   ExecutionStatus = "ERROR"
)

// Error codes reported inside execution and query results.
const (
	ErrorCodeDeviceNotFound       = "deviceNotFound"
	ErrorCodeDeviceOffline        = "deviceOffline"
	ErrorCodeFunctionNotSupported = "functionNotSupported"
	ErrorCodeTransientError       = "transientError"
	ErrorCodeHardError            = "hardError"
)

// StateOnline is the well-known state key carrying reachability.
const StateOnline = "online"

// TypeScene is the device type of the placeholder returned for empty homes.
const TypeScene = "action.devices.types.SCENE"

// Name holds the names the assistant may use for a device.
type Name struct {
	Name         string   `json:"name"`
	DefaultNames []string `json:"defaultNames,omitempty"`
	Nicknames    []string `json:"nicknames,omitempty"`
}

// Info describes the device hardware.
type Info struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	HwVersion    string `json:"hwVersion,omitempty"`
	SwVersion    string `json:"swVersion,omitempty"`
}

// OtherDeviceID links a device to its local-execution identity.
type OtherDeviceID struct {
	DeviceID string `json:"deviceId"`
}

// Properties is the description of a device as listed in a SYNC response.
type Properties struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Traits          []string        `json:"traits"`
	Name            Name            `json:"name"`
	WillReportState bool            `json:"willReportState"`
	RoomHint        string          `json:"roomHint,omitempty"`
	Attributes      map[string]any  `json:"attributes,omitempty"`
	DeviceInfo      *Info           `json:"deviceInfo,omitempty"`
	OtherDeviceIDs  []OtherDeviceID `json:"otherDeviceIds,omitempty"`
	CustomData      map[string]any  `json:"customData,omitempty"`
}

// Device is a registered device: its SYNC properties, the commands it
// accepts and its current state.
type Device struct {
	Properties

	// Commands maps each supported command name to the state keys the
	// command changes.
	Commands map[string][]string `json:"commands,omitempty"`

	// State is the last reported state. It never travels in the config
	// payload.
	State map[string]any `json:"-"`
}

// Command is one execution request from the assistant.
type Command struct {
	Name   string         `json:"command"`
	Params map[string]any `json:"params,omitempty"`
}

// ExecutionResult is what the registry reports for one command on one device.
type ExecutionResult struct {
	Status    ExecutionStatus
	ErrorCode string

	// Params are the parameters the device accepted.
	Params map[string]any

	// States is the device state after execution, if known.
	States map[string]any

	// ExecutionStates lists the state keys the command affects; only these
	// (and online) are echoed back.
	ExecutionStates []string
}

// Failed returns an ERROR result with the given code.
func Failed(code string) ExecutionResult {
	return ExecutionResult{Status: StatusError, ErrorCode: code}
}

// Online reports whether the device's state marks it reachable. A device
// that never reported online is assumed reachable.
func (d *Device) Online() bool {
	v, ok := d.State[StateOnline]
	if !ok {
		return true
	}
	online, isBool := v.(bool)
	return !isBool || online
}

// Supports reports whether the device accepts the named command.
func (d *Device) Supports(command string) bool {
	_, ok := d.Commands[command]
	return ok
}

// DeepCopy returns an independent copy of the device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := &Device{
		Properties: d.Properties.DeepCopy(),
		State:      deepCopyMap(d.State),
	}
	if d.Commands != nil {
		cpy.Commands = make(map[string][]string, len(d.Commands))
		for k, v := range d.Commands {
			cpy.Commands[k] = append([]string(nil), v...)
		}
	}
	return cpy
}

// DeepCopy returns an independent copy of the properties.
func (p Properties) DeepCopy() Properties {
	cpy := p
	cpy.Traits = append([]string(nil), p.Traits...)
	cpy.Name.DefaultNames = append([]string(nil), p.Name.DefaultNames...)
	cpy.Name.Nicknames = append([]string(nil), p.Name.Nicknames...)
	cpy.Attributes = deepCopyMap(p.Attributes)
	cpy.CustomData = deepCopyMap(p.CustomData)
	cpy.OtherDeviceIDs = append([]OtherDeviceID(nil), p.OtherDeviceIDs...)
	if p.DeviceInfo != nil {
		info := *p.DeviceInfo
		cpy.DeviceInfo = &info
	}
	return cpy
}

// isDeviceType reports whether t names an assistant device type.
func isDeviceType(t string) bool {
	return strings.HasPrefix(t, "action.devices.types.") && len(t) > len("action.devices.types.")
}

// isTrait reports whether t names an assistant trait.
func isTrait(t string) bool {
	return strings.HasPrefix(t, "action.devices.traits.") && len(t) > len("action.devices.traits.")
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
