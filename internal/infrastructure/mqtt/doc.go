// Package mqtt wraps the paho MQTT client for the bridge's sink.
//
// The wrapper adds:
//   - Connection management with auto-reconnect and exponential backoff
//   - Gateway availability via LWT on a retained status topic
//   - Subscription tracking with automatic restore after reconnect
//   - Panic recovery around message handlers
//   - Home Assistant discovery/state topic builders (Topics)
//
// The MQTT sink is optional: when disabled in config the bridge runs
// without a broker and the sink package simply skips its publisher.
package mqtt
