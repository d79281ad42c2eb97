// Package kv provides a namespaced key-value store over SQLite.
//
// The bridge's durable state is a flat set of string keys (the device table
// snapshot and the runtime settings), mirroring the gateway's on-device
// storage. A relational schema would be over-structure for twenty devices;
// the KV shape keeps the save/load codecs trivial and the clear-then-write
// save strategy a single transaction.
//
// Namespaces isolate consumers:
//
//	devStore, _ := kv.New(db, "device")
//	setStore, _ := kv.New(db, "settings")
//
// Replace is the primitive the device store's save strategy is built on:
// clear the namespace and rewrite the full snapshot atomically.
package kv
