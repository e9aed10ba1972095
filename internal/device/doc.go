// Package device holds the devices the assistant can see and control.
//
// The Registry is an in-memory, thread-safe set of devices, each carrying
// its SYNC properties, the commands it accepts (and the state keys each
// command changes) and its last reported state. The Bridge feeds the
// registry from MQTT: devices publish a retained JSON description and
// their state, and receive commands on their own command topic.
//
// Config payload example:
//
//	{
//	  "type": "action.devices.types.LIGHT",
//	  "traits": ["action.devices.traits.OnOff", "action.devices.traits.Brightness"],
//	  "name": {"name": "Kitchen light"},
//	  "willReportState": true,
//	  "roomHint": "Kitchen",
//	  "commands": {
//	    "action.devices.commands.OnOff": ["on"],
//	    "action.devices.commands.BrightnessAbsolute": ["brightness"]
//	  }
//	}
package device
