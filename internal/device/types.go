package device

import (
	"fmt"
	"time"
)

// Capacity and staleness constants.
const (
	// MaxDevices is the fixed registry capacity. The table never grows:
	// a gateway pairs at most this many sensors.
	MaxDevices = 20

	// MaxNameLength is the longest accepted device display name.
	MaxNameLength = 32

	// DeviceTimeout is how long a device may stay silent before it is
	// considered stale. Enforcement (alerting, pruning) is left to
	// collaborators; the registry only reports staleness.
	DeviceTimeout = time.Hour
)

// ContactType selects the service variant a contact capability projects as.
type ContactType int

// Contact sensor subtypes.
const (
	ContactTypeContact ContactType = iota
	ContactTypeLeak
	ContactTypeSmoke
	ContactTypeCO
	ContactTypeOccupancy
)

// String returns the wire/config name of the contact subtype.
func (t ContactType) String() string {
	switch t {
	case ContactTypeContact:
		return "contact"
	case ContactTypeLeak:
		return "leak"
	case ContactTypeSmoke:
		return "smoke"
	case ContactTypeCO:
		return "co"
	case ContactTypeOccupancy:
		return "occupancy"
	default:
		return fmt.Sprintf("contact_type(%d)", int(t))
	}
}

// Valid reports whether the subtype is one of the known variants.
func (t ContactType) Valid() bool {
	return t >= ContactTypeContact && t <= ContactTypeOccupancy
}

// ParseContactType converts a subtype name to a ContactType.
func ParseContactType(s string) (ContactType, error) {
	switch s {
	case "contact":
		return ContactTypeContact, nil
	case "leak":
		return ContactTypeLeak, nil
	case "smoke":
		return ContactTypeSmoke, nil
	case "co":
		return ContactTypeCO, nil
	case "occupancy":
		return ContactTypeOccupancy, nil
	default:
		return ContactTypeContact, fmt.Errorf("%w: contact type %q", ErrInvalidType, s)
	}
}

// MotionType selects the service variant a motion capability projects as.
type MotionType int

// Motion sensor subtypes.
const (
	MotionTypeMotion MotionType = iota
	MotionTypeOccupancy
	MotionTypeLeak
	MotionTypeSmoke
	MotionTypeCO
)

// String returns the wire/config name of the motion subtype.
func (t MotionType) String() string {
	switch t {
	case MotionTypeMotion:
		return "motion"
	case MotionTypeOccupancy:
		return "occupancy"
	case MotionTypeLeak:
		return "leak"
	case MotionTypeSmoke:
		return "smoke"
	case MotionTypeCO:
		return "co"
	default:
		return fmt.Sprintf("motion_type(%d)", int(t))
	}
}

// Valid reports whether the subtype is one of the known variants.
func (t MotionType) Valid() bool {
	return t >= MotionTypeMotion && t <= MotionTypeCO
}

// ParseMotionType converts a subtype name to a MotionType.
func ParseMotionType(s string) (MotionType, error) {
	switch s {
	case "motion":
		return MotionTypeMotion, nil
	case "occupancy":
		return MotionTypeOccupancy, nil
	case "leak":
		return MotionTypeLeak, nil
	case "smoke":
		return MotionTypeSmoke, nil
	case "co":
		return MotionTypeCO, nil
	default:
		return MotionTypeMotion, fmt.Errorf("%w: motion type %q", ErrInvalidType, s)
	}
}

// Device is one paired sensor in the registry.
//
// Capability flags are write-once: they are inferred from the first reading
// a device sends and never change afterwards. A sensor that later reports a
// new field has that value cached but never projected.
//
// ExternalID is the accessory identifier assigned by the binding. It is
// process-local state: never persisted, reassigned on every startup.
type Device struct {
	// ID is the sensor's stable identifier from its telemetry records.
	ID string

	// Name is the display name. Defaults to the ID until renamed.
	Name string

	// ExternalID is the bound accessory identifier. Zero means unbound.
	ExternalID uint64

	// Capability flags, write-once at creation.
	HasTemperature bool
	HasHumidity    bool
	HasBattery     bool
	HasLight       bool
	HasMotion      bool
	HasContact     bool

	// ContactSubtype selects the projected service for the contact
	// capability. Meaningful only when HasContact is set.
	ContactSubtype ContactType

	// MotionSubtype selects the projected service for the motion
	// capability. Meaningful only when HasMotion is set.
	MotionSubtype MotionType

	// Last reported values. Values for capabilities the device does not
	// have are cached but never projected.
	Temperature float64
	Humidity    float64
	Battery     float64
	Light       float64
	Motion      bool
	Contact     bool

	// RSSI is the signal strength of the last received frame, in dBm.
	RSSI int

	// LastSeen is when the last reading was applied.
	LastSeen time.Time
}

// IsStale reports whether the device has been silent longer than
// DeviceTimeout as of now.
func (d *Device) IsStale(now time.Time) bool {
	if d.LastSeen.IsZero() {
		return false
	}
	return now.Sub(d.LastSeen) > DeviceTimeout
}

// CapabilityCount returns how many capabilities the device has.
func (d *Device) CapabilityCount() int {
	n := 0
	for _, has := range []bool{
		d.HasTemperature, d.HasHumidity, d.HasBattery,
		d.HasLight, d.HasMotion, d.HasContact,
	} {
		if has {
			n++
		}
	}
	return n
}
