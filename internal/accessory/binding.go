package accessory

import "github.com/lorabridge/bridge-core/internal/device"

// ServiceType identifies the service a capability projects as on the
// accessory side. Contact and motion capabilities project different
// service types depending on the device's configured subtype.
type ServiceType string

// Service types the bridge projects.
const (
	ServiceTemperature ServiceType = "temperature_sensor"
	ServiceHumidity    ServiceType = "humidity_sensor"
	ServiceBattery     ServiceType = "battery"
	ServiceLight       ServiceType = "light_sensor"
	ServiceMotion      ServiceType = "motion_sensor"
	ServiceOccupancy   ServiceType = "occupancy_sensor"
	ServiceContact     ServiceType = "contact_sensor"
	ServiceLeak        ServiceType = "leak_sensor"
	ServiceSmoke       ServiceType = "smoke_sensor"
	ServiceCO          ServiceType = "co_sensor"
)

// Service is one projected service within an accessory.
type Service struct {
	// Type is the projected service type.
	Type ServiceType

	// Capability names the device capability feeding this service:
	// temperature, humidity, battery, light, motion or contact.
	Capability string
}

// Spec describes an accessory to be created by the binding.
type Spec struct {
	// Name is the accessory display name.
	Name string

	// Placeholder marks a throwaway accessory created only to consume an
	// identifier the binding would otherwise reuse. Bindings may render it
	// invisibly or not at all, but must still allocate an identifier.
	Placeholder bool

	// Services are the projected services, one per flagged capability.
	Services []Service
}

// Values carries current characteristic values keyed by capability name.
// Numeric capabilities are float64, boolean capabilities are bool.
type Values map[string]interface{}

// Binding is the external accessory collaborator.
//
// The contract the lifecycle Manager depends on:
//
//   - Create assigns and returns an accessory identifier. The binding is
//     assumed to hand the most recently freed identifier straight back on
//     the next Create, so identifiers of removed accessories get REUSED.
//     Controllers cache state by identifier, and reuse across a shape
//     change corrupts their view - the Manager works around it, see Rebind.
//   - Remove frees the accessory's identifier for reuse.
//   - Update pushes values to an existing accessory and must be cheap;
//     it is called on every accepted reading.
type Binding interface {
	Create(spec Spec) (uint64, error)
	Remove(id uint64) error
	Update(id uint64, values Values) error
}

// ProjectSpec builds the accessory Spec for a device from its write-once
// capability flags and current subtypes.
func ProjectSpec(d *device.Device) Spec {
	spec := Spec{Name: d.Name}

	if d.HasTemperature {
		spec.Services = append(spec.Services, Service{Type: ServiceTemperature, Capability: "temperature"})
	}
	if d.HasHumidity {
		spec.Services = append(spec.Services, Service{Type: ServiceHumidity, Capability: "humidity"})
	}
	if d.HasBattery {
		spec.Services = append(spec.Services, Service{Type: ServiceBattery, Capability: "battery"})
	}
	if d.HasLight {
		spec.Services = append(spec.Services, Service{Type: ServiceLight, Capability: "light"})
	}
	if d.HasMotion {
		spec.Services = append(spec.Services, Service{Type: motionService(d.MotionSubtype), Capability: "motion"})
	}
	if d.HasContact {
		spec.Services = append(spec.Services, Service{Type: contactService(d.ContactSubtype), Capability: "contact"})
	}

	return spec
}

// ProjectValues builds the value set for a device, restricted to flagged
// capabilities. Cached values for unflagged fields are never projected.
func ProjectValues(d *device.Device) Values {
	values := make(Values)

	if d.HasTemperature {
		values["temperature"] = d.Temperature
	}
	if d.HasHumidity {
		values["humidity"] = d.Humidity
	}
	if d.HasBattery {
		values["battery"] = d.Battery
	}
	if d.HasLight {
		values["light"] = d.Light
	}
	if d.HasMotion {
		values["motion"] = d.Motion
	}
	if d.HasContact {
		values["contact"] = d.Contact
	}

	return values
}

// contactService maps a contact subtype to its projected service type.
func contactService(t device.ContactType) ServiceType {
	switch t {
	case device.ContactTypeLeak:
		return ServiceLeak
	case device.ContactTypeSmoke:
		return ServiceSmoke
	case device.ContactTypeCO:
		return ServiceCO
	case device.ContactTypeOccupancy:
		return ServiceOccupancy
	default:
		return ServiceContact
	}
}

// motionService maps a motion subtype to its projected service type.
func motionService(t device.MotionType) ServiceType {
	switch t {
	case device.MotionTypeOccupancy:
		return ServiceOccupancy
	case device.MotionTypeLeak:
		return ServiceLeak
	case device.MotionTypeSmoke:
		return ServiceSmoke
	case device.MotionTypeCO:
		return ServiceCO
	default:
		return ServiceMotion
	}
}
