// Package sink fans device events out to the configured consumers.
//
// Three sinks exist: the accessory binding (always on), the MQTT
// publisher speaking Home Assistant's discovery dialect (optional), and
// the InfluxDB history writer (optional). They fail independently - the
// Fanout logs and swallows every delivery error so one struggling sink
// cannot back-pressure the gateway loop or starve the others.
package sink
