// Package logging provides structured logging for the bridge.
//
// It wraps log/slog with configuration-driven setup (level, format, output)
// and default service fields. Components receive a *Logger and typically
// derive their own with With("component", "...").
package logging
