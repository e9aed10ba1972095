package fulfillment

import (
	"encoding/json"

	"github.com/nerrad567/gray-logic-assistant/internal/device"
)

// Intent names.
const (
	IntentSync             = "action.devices.SYNC"
	IntentQuery            = "action.devices.QUERY"
	IntentExecute          = "action.devices.EXECUTE"
	IntentIdentify         = "action.devices.IDENTIFY"
	IntentReachableDevices = "action.devices.REACHABLE_DEVICES"
	IntentDisconnect       = "action.devices.DISCONNECT"
)

// Request is the body of a fulfillment call.
type Request struct {
	RequestID string  `json:"requestId"`
	Inputs    []Input `json:"inputs"`
}

// Input is one intent with its raw payload.
type Input struct {
	Intent  string          `json:"intent"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the envelope returned for every intent.
type Response struct {
	RequestID string `json:"requestId"`
	Payload   any    `json:"payload"`
}

// ErrorPayload is the payload of a request that failed as a whole.
type ErrorPayload struct {
	ErrorCode string `json:"errorCode"`
	Debug     string `json:"debugString,omitempty"`
}

type syncPayload struct {
	AgentUserID string              `json:"agentUserId"`
	Devices     []device.Properties `json:"devices"`
}

type deviceRef struct {
	ID         string         `json:"id"`
	CustomData map[string]any `json:"customData,omitempty"`
}

type queryRequest struct {
	Devices []deviceRef `json:"devices"`
}

type queryPayload struct {
	Devices map[string]map[string]any `json:"devices"`
}

type executeRequest struct {
	Commands []commandGroup `json:"commands"`
}

type commandGroup struct {
	Devices   []deviceRef      `json:"devices"`
	Execution []device.Command `json:"execution"`
}

type executePayload struct {
	Commands []commandResult `json:"commands"`
}

type commandResult struct {
	IDs       []string               `json:"ids"`
	Status    device.ExecutionStatus `json:"status"`
	States    map[string]any         `json:"states,omitempty"`
	ErrorCode string                 `json:"errorCode,omitempty"`
}

type identifyRequest struct {
	// AgentVersion is the local execution agent's version, when it sends one.
	AgentVersion string `json:"agentVersion,omitempty"`
	Device       struct {
		MDNSScanData *struct {
			Txt []string `json:"txt"`
		} `json:"mdnsScanData,omitempty"`
	} `json:"device"`
}

type identifyPayload struct {
	Device identifiedDevice `json:"device"`
}

type identifiedDevice struct {
	ID          string `json:"id"`
	IsProxy     bool   `json:"isProxy"`
	IsLocalOnly bool   `json:"isLocalOnly"`
}

type reachablePayload struct {
	Devices []reachableDevice `json:"devices"`
}

type reachableDevice struct {
	VerificationID string `json:"verificationId"`
}
