package kv

import "errors"

// Sentinel errors for the kv package.
// Use errors.Is() to check for these conditions.
var (
	// ErrKeyNotFound indicates the requested key does not exist in the namespace.
	ErrKeyNotFound = errors.New("kv: key not found")

	// ErrNilDatabase indicates a Store was constructed without a database.
	ErrNilDatabase = errors.New("kv: database is nil")

	// ErrEmptyNamespace indicates a Store was constructed without a namespace.
	ErrEmptyNamespace = errors.New("kv: namespace is empty")
)
