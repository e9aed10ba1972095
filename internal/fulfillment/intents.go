package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/nerrad567/gray-logic-assistant/internal/device"
)

// Placeholder device returned by SYNC when no device is registered, so the
// assistant does not treat the account as empty.
const (
	placeholderID   = "graylogic-placeholder"
	placeholderName = "Gray Logic"
	sceneTrait      = "action.devices.traits.Scene"
)

// Keys under which SYNC hands the local token pair to the assistant.
const (
	customDataLocalToken     = "localToken"
	customDataLocalNextToken = "localNextToken"
)

func (d *Dispatcher) sync(ctx context.Context, caller Caller) (syncPayload, int) {
	agentUser := caller.User
	if caller.Local {
		if linked, ok := d.auth.LinkedUser(); ok {
			agentUser = linked
		}
	}

	props := d.registry.Properties(ctx)
	if len(props) == 0 {
		props = []device.Properties{placeholder()}
	}

	current, next := d.auth.LocalTokens()
	for i := range props {
		if props[i].CustomData == nil {
			props[i].CustomData = make(map[string]any, 2)
		}
		props[i].CustomData[customDataLocalToken] = current
		props[i].CustomData[customDataLocalNextToken] = next
	}

	return syncPayload{AgentUserID: agentUser, Devices: props}, len(props)
}

func placeholder() device.Properties {
	return device.Properties{
		ID:         placeholderID,
		Type:       device.TypeScene,
		Traits:     []string{sceneTrait},
		Name:       device.Name{Name: placeholderName},
		Attributes: map[string]any{"sceneReversible": false},
	}
}

func (d *Dispatcher) query(ctx context.Context, raw json.RawMessage) (queryPayload, int, error) {
	var req queryRequest
	if err := decodePayload(raw, &req); err != nil {
		return queryPayload{}, 0, err
	}

	ids := make([]string, 0, len(req.Devices))
	for _, ref := range req.Devices {
		ids = append(ids, ref.ID)
	}
	// An empty list would mean "all devices" to the registry.
	states := map[string]map[string]any{}
	if len(ids) > 0 {
		states = d.registry.States(ctx, ids)
	}

	out := make(map[string]map[string]any, len(ids))
	for _, id := range ids {
		state, ok := states[id]
		if !ok {
			out[id] = map[string]any{
				device.StateOnline: false,
				"status":           string(device.StatusError),
				"errorCode":        device.ErrorCodeDeviceNotFound,
			}
			continue
		}
		if state == nil {
			state = make(map[string]any, 2)
		}
		if _, has := state[device.StateOnline]; !has {
			state[device.StateOnline] = true
		}
		state["status"] = string(device.StatusSuccess)
		out[id] = state
	}
	return queryPayload{Devices: out}, len(ids), nil
}

func (d *Dispatcher) identify(raw json.RawMessage) (identifyPayload, error) {
	var req identifyRequest
	if len(raw) > 0 {
		if err := decodePayload(raw, &req); err != nil {
			return identifyPayload{}, err
		}
	}
	d.checkAgentVersion(agentVersion(req))

	return identifyPayload{Device: identifiedDevice{
		ID:          d.proxyID,
		IsProxy:     true,
		IsLocalOnly: true,
	}}, nil
}

// checkAgentVersion logs whether the local agent is recent enough. It never
// fails the request.
func (d *Dispatcher) checkAgentVersion(reported string) {
	if d.minVersion == "" {
		return
	}
	if reported == "" {
		d.logger.Debug("local agent did not report a version")
		return
	}
	v := canonicalVersion(reported)
	if !semver.IsValid(v) {
		d.logger.Warn("local agent reported an invalid version", "version", reported)
		return
	}
	if semver.Compare(v, d.minVersion) < 0 {
		d.logger.Warn("local agent is older than supported",
			"version", reported,
			"minimum", d.minVersion,
		)
		return
	}
	d.logger.Debug("local agent version compatible", "version", reported)
}

// agentVersion reads the version from the payload or the mDNS TXT record.
func agentVersion(req identifyRequest) string {
	if req.AgentVersion != "" {
		return req.AgentVersion
	}
	if req.Device.MDNSScanData == nil {
		return ""
	}
	for _, rec := range req.Device.MDNSScanData.Txt {
		if v, ok := strings.CutPrefix(rec, "version="); ok {
			return v
		}
	}
	return ""
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func (d *Dispatcher) reachable(ctx context.Context) (reachablePayload, int) {
	ids := d.registry.IDs(ctx)
	out := make([]reachableDevice, 0, len(ids))
	for _, id := range ids {
		out = append(out, reachableDevice{VerificationID: id})
	}
	return reachablePayload{Devices: out}, len(out)
}

func (d *Dispatcher) disconnect(caller Caller) map[string]any {
	if caller.Local {
		d.logger.Warn("disconnect ignored for local execution caller")
		return map[string]any{}
	}
	d.auth.RemoveAllTokensForUser(caller.User)
	if d.metrics != nil {
		d.metrics.RecordTokenEvent("unlink")
	}
	d.logger.Info("account unlinked", "user", caller.User)
	return map[string]any{}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", ErrMalformedRequest)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	return nil
}
