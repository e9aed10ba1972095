package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementIntent      = "assistant_intent"
	MeasurementStateReport = "assistant_state_report"
	MeasurementTokenEvent  = "assistant_token_event"
)

// RecordIntent records one fulfillment request. outcome is "success" or an
// error code; devices counts the devices the intent touched.
func (c *Client) RecordIntent(intent, source, outcome string, devices int, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(intentPoint(intent, source, outcome, devices, elapsed, time.Now()))
}

// RecordStateReport records a home graph call. kind is "report_state" or
// "request_sync".
func (c *Client) RecordStateReport(kind string, devices int, err error) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(stateReportPoint(kind, devices, err, time.Now()))
}

// RecordTokenEvent records a token lifecycle event such as "link",
// "refresh", "unlink" or "local_rotate".
func (c *Client) RecordTokenEvent(event string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementTokenEvent,
		map[string]string{"event": event},
		map[string]any{"count": 1},
		time.Now(),
	))
}

// WritePoint writes a custom point.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func intentPoint(intent, source, outcome string, devices int, elapsed time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementIntent,
		map[string]string{
			"intent":  intent,
			"source":  source,
			"outcome": outcome,
		},
		map[string]any{
			"devices":     devices,
			"duration_ms": float64(elapsed) / float64(time.Millisecond),
		},
		ts,
	)
}

func stateReportPoint(kind string, devices int, err error, ts time.Time) *write.Point {
	status := "ok"
	if err != nil {
		status = "error"
	}
	return write.NewPoint(
		MeasurementStateReport,
		map[string]string{"kind": kind, "status": status},
		map[string]any{"devices": devices},
		ts,
	)
}
