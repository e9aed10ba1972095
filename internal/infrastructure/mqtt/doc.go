// Package mqtt connects the assistant bridge to the home's MQTT bus.
//
// Devices announce themselves by publishing a retained description to
// graylogic/assistant/device/{id}/config and keep their state retained on
// .../state. The bridge publishes execution requests to .../command and
// advertises its own availability on graylogic/assistant/status, with a
// Last Will so the broker flips it to offline on a crash.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceStates(), 1,
//	    func(topic string, payload []byte) error {
//	        return nil
//	    })
package mqtt
