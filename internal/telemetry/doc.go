// Package telemetry parses sensor telemetry records.
//
// Records are compact JSON with single-letter keys to fit a radio frame:
//
//	{"k":"xy","id":"a1b2c3","t":21.5,"hu":48,"b":87,"m":"on"}
//
// The "k" field is the gateway's shared secret; records without it are
// rejected before any field is looked at. Boolean fields ("m", "c") arrive
// as JSON booleans or as strings, where "on", "1" and "true" are truthy and
// everything else is false.
package telemetry
