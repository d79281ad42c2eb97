package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTelemetry writes one telemetry sample for a device.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Only the fields a device actually reports should be passed - a nil or
// empty fields map is dropped.
//
// Parameters:
//   - deviceID: Stable device identifier from the sensor payload
//   - deviceName: Current display name (tag, low cardinality)
//   - fields: Capability values, e.g. {"temperature": 21.5, "battery": 87.0}
//
// Example:
//
//	client.WriteTelemetry("a1b2c3", "Hallway Sensor", map[string]interface{}{
//	    "temperature": 21.5,
//	    "humidity":    48.0,
//	})
func (c *Client) WriteTelemetry(deviceID, deviceName string, fields map[string]interface{}) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"telemetry",
		map[string]string{
			"device_id":   deviceID,
			"device_name": deviceName,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSignal writes a link-quality sample (RSSI) for a device.
//
// Parameters:
//   - deviceID: Stable device identifier
//   - rssi: Received signal strength in dBm
func (c *Client) WriteSignal(deviceID string, rssi int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"signal",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"rssi": rssi,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
