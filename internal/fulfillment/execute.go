package fulfillment

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/gray-logic-assistant/internal/device"
)

func (d *Dispatcher) execute(ctx context.Context, raw json.RawMessage) (executePayload, int, error) {
	var req executeRequest
	if err := decodePayload(raw, &req); err != nil {
		return executePayload{}, 0, err
	}

	var results []commandResult
	touched := 0
	for _, group := range req.Commands {
		for _, ref := range group.Devices {
			touched++
			results = append(results, d.executeOn(ctx, ref.ID, group.Execution))
		}
	}
	if results == nil {
		results = []commandResult{}
	}
	return executePayload{Commands: results}, touched, nil
}

// executeOn runs every execution step against one device, stopping at the
// first failure.
func (d *Dispatcher) executeOn(ctx context.Context, id string, steps []device.Command) commandResult {
	fail := func(code string) commandResult {
		return commandResult{IDs: []string{id}, Status: device.StatusError, ErrorCode: code}
	}

	dev, ok := d.registry.Get(ctx, id)
	if !ok {
		return fail(device.ErrorCodeDeviceNotFound)
	}
	if !d.registry.IsOnline(dev) {
		return fail(device.ErrorCodeDeviceOffline)
	}
	if len(steps) == 0 {
		return fail(device.ErrorCodeFunctionNotSupported)
	}

	visible := map[string]any{}
	var latest map[string]any
	for _, cmd := range steps {
		res := d.registry.Execute(ctx, dev, cmd)
		if res.Status != "" && res.Status != device.StatusSuccess {
			d.logger.Info("command rejected by device",
				"device_id", id,
				"command", cmd.Name,
				"status", res.Status,
				"error_code", res.ErrorCode,
			)
			return commandResult{IDs: []string{id}, Status: res.Status, ErrorCode: res.ErrorCode}
		}
		mergeExecutionStates(visible, res)
		if res.States != nil {
			latest = res.States
		}
	}
	visible[device.StateOnline] = true

	report := latest
	if report == nil {
		report = visible
	}
	if d.reporter != nil {
		d.reporter.ReportStateAsync(id, report)
	}

	return commandResult{IDs: []string{id}, Status: device.StatusSuccess, States: visible}
}

// mergeExecutionStates copies each affected key into visible, preferring the
// accepted parameter over the stored state.
func mergeExecutionStates(visible map[string]any, res device.ExecutionResult) {
	for _, key := range res.ExecutionStates {
		if v, ok := res.Params[key]; ok {
			visible[key] = v
			continue
		}
		if v, ok := res.States[key]; ok {
			visible[key] = v
		}
	}
}
