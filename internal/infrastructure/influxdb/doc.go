// Package influxdb provides optional telemetry history for the bridge.
//
// When enabled in config, every accepted sensor reading is recorded as a
// point in the "telemetry" measurement and link quality in "signal". Writes
// are non-blocking and batched; async write failures surface through the
// SetOnError callback and never stall the gateway loop.
//
// The integration is entirely optional - the bridge runs unchanged with
// influxdb.enabled: false.
package influxdb
