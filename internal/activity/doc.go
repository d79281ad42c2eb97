// Package activity keeps a small in-memory log of gateway events.
//
// The buffer holds the last MaxEntries lines - device creation, renames,
// removals, sink failures - for the management API to show. It is
// observability for a glanceable UI, not an audit trail: nothing here is
// persisted.
package activity
