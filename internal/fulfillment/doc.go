// Package fulfillment answers smart-home intent requests from the voice
// assistant.
//
// Every request passes one authentication gate: the bearer token must map to
// a linked user (cloud path) or to the local execution pair (local path).
// The first input's intent then selects a handler:
//
//	action.devices.SYNC               list devices
//	action.devices.QUERY              read device states
//	action.devices.EXECUTE            run commands
//	action.devices.IDENTIFY           describe the local proxy
//	action.devices.REACHABLE_DEVICES  list devices reachable through the proxy
//	action.devices.DISCONNECT         unlink the account
//
// Device-level failures travel inside a successful envelope with
// status ERROR and an errorCode. Only authentication and malformed requests
// fail the call itself.
package fulfillment
