package accessory

import (
	"fmt"

	"github.com/lorabridge/bridge-core/internal/device"
	"github.com/lorabridge/bridge-core/internal/infrastructure/logging"
)

// placeholderName is the display name given to spacer accessories.
// Bindings may hide placeholders entirely; the name only shows up if one
// leaks, which makes leaks easy to spot.
const placeholderName = "spacer"

// Manager drives accessory lifecycle against a Binding.
//
// Its one hard invariant: a logical device's ExternalID strictly increases
// within a process run. The binding reuses freed identifiers, and a reused
// identifier after a shape change (rename, subtype change) leaves
// controllers with a cached accessory that no longer matches. The Manager
// defends the invariant with a placeholder accessory, see Rebind.
//
// Like the registry, the Manager is owned by the gateway loop and is not
// safe for concurrent use.
type Manager struct {
	binding Binding
	logger  *logging.Logger
}

// NewManager creates a Manager over the given binding.
func NewManager(binding Binding, logger *logging.Logger) *Manager {
	return &Manager{
		binding: binding,
		logger:  logger.With("component", "accessory"),
	}
}

// Bind creates the accessory for a device and records the assigned
// identifier on it.
//
// Returns ErrAlreadyBound if the device already has an accessory.
func (m *Manager) Bind(d *device.Device) error {
	if d.ExternalID != 0 {
		return fmt.Errorf("%w: %s (id %d)", ErrAlreadyBound, d.ID, d.ExternalID)
	}

	id, err := m.binding.Create(ProjectSpec(d))
	if err != nil {
		return fmt.Errorf("binding device %s: %w", d.ID, err)
	}

	d.ExternalID = id
	m.logger.Info("accessory bound", "device_id", d.ID, "external_id", id)
	return nil
}

// Unbind removes a device's accessory and clears its identifier.
//
// Returns ErrNotBound if the device has no accessory.
func (m *Manager) Unbind(d *device.Device) error {
	if d.ExternalID == 0 {
		return fmt.Errorf("%w: %s", ErrNotBound, d.ID)
	}

	if err := m.binding.Remove(d.ExternalID); err != nil {
		return fmt.Errorf("unbinding device %s: %w", d.ID, err)
	}

	m.logger.Info("accessory unbound", "device_id", d.ID, "external_id", d.ExternalID)
	d.ExternalID = 0
	return nil
}

// Rebind recreates a device's accessory after a shape change, guaranteeing
// the new identifier is strictly greater than the old one.
//
// The dance:
//
//  1. Remove the device's accessory. Its identifier is now the lowest
//     free one, and the binding would hand it straight back.
//  2. Create a placeholder, which consumes that freed identifier.
//  3. Create the device's new accessory - forced onto a fresh, higher
//     identifier.
//  4. Remove the placeholder. Its identifier is free again for whichever
//     future accessory doesn't care about reuse.
//
// If the binding ever violates the expected allocation order the new
// identifier could regress; that is checked and reported rather than
// silently handed to controllers.
func (m *Manager) Rebind(d *device.Device) error {
	if d.ExternalID == 0 {
		return fmt.Errorf("%w: %s", ErrNotBound, d.ID)
	}
	oldID := d.ExternalID

	if err := m.binding.Remove(oldID); err != nil {
		return fmt.Errorf("rebinding device %s: removing old accessory: %w", d.ID, err)
	}

	spacerID, err := m.binding.Create(Spec{Name: placeholderName, Placeholder: true})
	if err != nil {
		return fmt.Errorf("rebinding device %s: creating placeholder: %w", d.ID, err)
	}

	newID, err := m.binding.Create(ProjectSpec(d))
	if err != nil {
		return fmt.Errorf("rebinding device %s: creating new accessory: %w", d.ID, err)
	}

	if err := m.binding.Remove(spacerID); err != nil {
		// The accessory is live; a leaked spacer is cosmetic. Log and go on.
		m.logger.Warn("placeholder removal failed", "device_id", d.ID, "spacer_id", spacerID, "error", err)
	}

	if newID <= oldID {
		return fmt.Errorf("%w: device %s got %d after %d", ErrIdentifierReused, d.ID, newID, oldID)
	}

	d.ExternalID = newID
	m.logger.Info("accessory rebound",
		"device_id", d.ID, "old_external_id", oldID, "new_external_id", newID)
	return nil
}

// Push updates the accessory's characteristic values from the device's
// flagged capabilities.
//
// Returns ErrNotBound if the device has no accessory.
func (m *Manager) Push(d *device.Device) error {
	if d.ExternalID == 0 {
		return fmt.Errorf("%w: %s", ErrNotBound, d.ID)
	}

	if err := m.binding.Update(d.ExternalID, ProjectValues(d)); err != nil {
		return fmt.Errorf("pushing device %s: %w", d.ID, err)
	}
	return nil
}
