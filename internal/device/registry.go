package device

import (
	"fmt"
	"time"

	"github.com/lorabridge/bridge-core/internal/telemetry"
)

// Registry is the fixed-capacity device table.
//
// The registry is deliberately not safe for concurrent use: the gateway
// loop owns it exclusively and all mutation happens on that goroutine.
// Management operations reach it through the loop's command channel.
//
// Structural mutations (create, rename, retype, remove) require a durable
// save afterwards; the registry reports them through the boolean returns
// and the gateway persists via Store.Save.
type Registry struct {
	devices []*Device
	byID    map[string]*Device
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make([]*Device, 0, MaxDevices),
		byID:    make(map[string]*Device, MaxDevices),
	}
}

// Lookup returns the device with the given identifier.
func (r *Registry) Lookup(id string) (*Device, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	return len(r.devices)
}

// Devices returns the devices in registration order.
// The returned slice is a copy; the devices it points to are live.
func (r *Registry) Devices() []*Device {
	return append([]*Device(nil), r.devices...)
}

// ActiveCount returns how many devices have reported within DeviceTimeout.
func (r *Registry) ActiveCount(now time.Time) int {
	n := 0
	for _, d := range r.devices {
		if !d.IsStale(now) {
			n++
		}
	}
	return n
}

// CreateFromReading registers a new device inferred from its first reading.
//
// The capability flags are set from the fields present in the reading and
// never change afterwards. Subtypes default to the plain variants. The
// display name defaults to the device identifier.
//
// Returns:
//   - *Device: The created device with the reading already applied
//   - error: ErrTableFull if the registry is at capacity,
//     ErrAlreadyExists if the identifier is taken
func (r *Registry) CreateFromReading(reading *telemetry.Reading, now time.Time) (*Device, error) {
	if _, exists := r.byID[reading.DeviceID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, reading.DeviceID)
	}
	if len(r.devices) >= MaxDevices {
		return nil, ErrTableFull
	}

	d := &Device{
		ID:             reading.DeviceID,
		Name:           reading.DeviceID,
		HasTemperature: reading.Temperature != nil,
		HasHumidity:    reading.Humidity != nil,
		HasBattery:     reading.Battery != nil,
		HasLight:       reading.Light != nil,
		HasMotion:      reading.Motion != nil,
		HasContact:     reading.Contact != nil,
		ContactSubtype: ContactTypeContact,
		MotionSubtype:  MotionTypeMotion,
	}

	r.devices = append(r.devices, d)
	r.byID[d.ID] = d

	r.applyValues(d, reading, now)

	return d, nil
}

// ApplyReading updates a device's values from a reading.
//
// Values arrive for every field the reading carries, including fields the
// device has no capability flag for - those are cached but collaborators
// only project flagged capabilities. Applying a reading is not a
// structural mutation and does not require a save.
//
// Returns ErrNotFound if the device is not registered.
func (r *Registry) ApplyReading(reading *telemetry.Reading, now time.Time) (*Device, error) {
	d, ok := r.byID[reading.DeviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, reading.DeviceID)
	}

	r.applyValues(d, reading, now)
	return d, nil
}

// applyValues copies reported fields onto the device and stamps LastSeen.
func (r *Registry) applyValues(d *Device, reading *telemetry.Reading, now time.Time) {
	if reading.Temperature != nil {
		d.Temperature = *reading.Temperature
	}
	if reading.Humidity != nil {
		d.Humidity = *reading.Humidity
	}
	if reading.Battery != nil {
		d.Battery = *reading.Battery
	}
	if reading.Light != nil {
		d.Light = *reading.Light
	}
	if reading.Motion != nil {
		d.Motion = *reading.Motion
	}
	if reading.Contact != nil {
		d.Contact = *reading.Contact
	}
	d.LastSeen = now
}

// Rename changes a device's display name.
//
// Returns ErrNotFound if the device is not registered, ErrInvalidName for
// an empty or over-length name.
func (r *Registry) Rename(id, name string) (*Device, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if name == "" || len(name) > MaxNameLength {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	d.Name = name
	return d, nil
}

// SetContactType changes the contact capability's projected subtype.
//
// Returns ErrNotFound if the device is not registered,
// ErrCapabilityMissing if it has no contact capability,
// ErrInvalidType for an unknown subtype.
func (r *Registry) SetContactType(id string, t ContactType) (*Device, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !d.HasContact {
		return nil, fmt.Errorf("%w: %s has no contact capability", ErrCapabilityMissing, id)
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, int(t))
	}

	d.ContactSubtype = t
	return d, nil
}

// SetMotionType changes the motion capability's projected subtype.
//
// Returns ErrNotFound if the device is not registered,
// ErrCapabilityMissing if it has no motion capability,
// ErrInvalidType for an unknown subtype.
func (r *Registry) SetMotionType(id string, t MotionType) (*Device, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !d.HasMotion {
		return nil, fmt.Errorf("%w: %s has no motion capability", ErrCapabilityMissing, id)
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, int(t))
	}

	d.MotionSubtype = t
	return d, nil
}

// Remove unregisters a device and returns it.
//
// The slot it occupied becomes available again; registration order of the
// remaining devices is preserved.
//
// Returns ErrNotFound if the device is not registered.
func (r *Registry) Remove(id string) (*Device, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	delete(r.byID, id)
	for i, cur := range r.devices {
		if cur == d {
			r.devices = append(r.devices[:i], r.devices[i+1:]...)
			break
		}
	}

	return d, nil
}
