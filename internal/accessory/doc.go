// Package accessory projects devices onto an external accessory binding.
//
// The binding (a HomeKit-style controller integration) assigns each
// accessory a numeric identifier and reuses freed identifiers for new
// accessories. Controllers cache accessory shape by identifier, so a
// device whose accessory is recreated with a different shape must never
// come back under a previously used identifier.
//
// The Manager enforces that as an invariant - a device's identifier
// strictly increases within a process run - by briefly creating a
// placeholder accessory to consume the freed identifier during recreation.
//
// Identifiers are process-local: nothing here is persisted, and every
// startup binds the restored device table from scratch.
package accessory
