// Package influxdb records bridge activity as time-series points.
//
// Every fulfillment intent, home graph call and token lifecycle event becomes
// a point in the configured bucket. Writes are batched and non-blocking; a
// nil or disconnected client silently drops them, so callers never need to
// check whether metrics are enabled.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	client.RecordIntent("action.devices.SYNC", "cloud", "success", 4, 12*time.Millisecond)
package influxdb
