// Package settings manages the runtime-mutable gateway parameters.
//
// Three layers produce the effective settings: compiled defaults, the YAML
// config file, and values saved through the management API. The first two
// arrive as FromConfig defaults; Store.Load overlays whatever the operator
// has persisted. Saving always writes the complete set, so a loaded
// snapshot never mixes generations.
package settings
