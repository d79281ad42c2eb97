package mqtt

import "fmt"

// Home Assistant discovery components the bridge publishes under.
const (
	// ComponentSensor is the discovery component for numeric capabilities
	// (temperature, humidity, battery, light level, RSSI).
	ComponentSensor = "sensor"

	// ComponentBinarySensor is the discovery component for boolean
	// capabilities (motion, contact).
	ComponentBinarySensor = "binary_sensor"
)

// Topics builds MQTT topic names for the bridge.
//
// Discovery and state topics follow the Home Assistant convention:
//
//	<prefix>/<component>/<gateway>_<device>/<capability>/config
//	<prefix>/<component>/<gateway>_<device>/<capability>/state
//
// where <prefix> is the configured discovery prefix (normally
// "homeassistant") and <gateway>_<device> forms the node ID. The
// availability topic lives outside the discovery tree and carries the
// gateway's online/offline state via LWT.
type Topics struct {
	// DiscoveryPrefix is the Home Assistant discovery prefix, e.g. "homeassistant".
	DiscoveryPrefix string

	// GatewayID is the stable gateway identifier used in node IDs.
	GatewayID string
}

// nodeID returns the discovery node identifier for a device.
func (t Topics) nodeID(deviceID string) string {
	return fmt.Sprintf("%s_%s", t.GatewayID, deviceID)
}

// Discovery returns the retained discovery config topic for a capability.
//
// Example: homeassistant/sensor/lorabridge_a1b2c3/temperature/config
func (t Topics) Discovery(component, deviceID, capability string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", t.DiscoveryPrefix, component, t.nodeID(deviceID), capability)
}

// State returns the state topic for a capability.
//
// Example: homeassistant/sensor/lorabridge_a1b2c3/temperature/state
func (t Topics) State(component, deviceID, capability string) string {
	return fmt.Sprintf("%s/%s/%s/%s/state", t.DiscoveryPrefix, component, t.nodeID(deviceID), capability)
}

// RSSIState returns the diagnostic RSSI state topic for a device.
//
// Example: homeassistant/sensor/lorabridge_a1b2c3/rssi/state
func (t Topics) RSSIState(deviceID string) string {
	return t.State(ComponentSensor, deviceID, "rssi")
}

// RSSIDiscovery returns the diagnostic RSSI discovery topic for a device.
func (t Topics) RSSIDiscovery(deviceID string) string {
	return t.Discovery(ComponentSensor, deviceID, "rssi")
}

// Availability returns the gateway availability topic used for LWT.
//
// Example: lorabridge/lorabridge/status
func (t Topics) Availability() string {
	return fmt.Sprintf("lorabridge/%s/status", t.GatewayID)
}

// Birth returns Home Assistant's birth/will topic under the discovery
// prefix. HA publishes "online" here once it has finished starting, the
// bridge's cue to re-announce its discovery configs.
//
// Example: homeassistant/status
func (t Topics) Birth() string {
	return fmt.Sprintf("%s/status", t.DiscoveryPrefix)
}

// DeviceWildcard returns a pattern matching every topic under a device's
// node ID for one component. Used when retracting a removed device.
//
// Pattern: homeassistant/sensor/lorabridge_a1b2c3/+/config
func (t Topics) DeviceWildcard(component, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s/+/config", t.DiscoveryPrefix, component, t.nodeID(deviceID))
}

// UniqueID returns the Home Assistant unique_id for a capability entity.
//
// Example: lorabridge_a1b2c3_temperature
func (t Topics) UniqueID(deviceID, capability string) string {
	return fmt.Sprintf("%s_%s", t.nodeID(deviceID), capability)
}
