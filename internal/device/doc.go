// Package device holds the gateway's fixed-capacity device table.
//
// A device is created the first time an unknown sensor identifier shows up
// in a valid reading. Its capabilities are inferred from the fields that
// first reading carries and are write-once from then on: sensors declare
// what they are by what they first send.
//
// The table is capped at MaxDevices. When it is full, readings from
// unknown sensors are dropped; existing devices keep updating.
//
// The Registry itself is single-owner state for the gateway loop and
// carries no locks. Persistence lives in Store, which snapshots identity,
// names, capability flags and subtypes to the durable key-value store -
// never live values or accessory identifiers.
package device
