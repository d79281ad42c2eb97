// Package gateway runs the bridge's single processing loop.
//
// One goroutine owns the registry, the accessory manager, the activity log
// and the live settings. Frames arrive on a channel from the frame source;
// management operations arrive as closures on a command channel and execute
// between frames. Nothing else ever touches the loop-owned state, which is
// why none of it carries locks.
package gateway
