// Package config loads and validates the bridge configuration.
//
// Configuration comes from three layers, later layers overriding earlier:
//
//  1. Compiled defaults (defaultConfig)
//  2. YAML file (configs/config.yaml by default)
//  3. LORABRIDGE_* environment variables
//
// Radio, encryption and MQTT credential values are only defaults here: the
// settings package overlays values persisted in the durable store on top of
// the loaded Config during startup, and the management API mutates them at
// runtime. Infrastructure values (database path, API listener, logging) are
// file/env only.
package config
