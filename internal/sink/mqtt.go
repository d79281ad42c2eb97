package sink

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lorabridge/bridge-core/internal/device"
	"github.com/lorabridge/bridge-core/internal/infrastructure/mqtt"
)

// Broker is the slice of the MQTT client the publisher needs.
// Implemented by *mqtt.Client.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Topics() mqtt.Topics
	IsConnected() bool
}

// Publisher mirrors the device table onto an MQTT broker in Home
// Assistant's discovery dialect.
//
// Discovery config payloads are published retained when a device appears
// or changes shape; per-capability state topics are updated on every
// accepted reading. Removal publishes empty retained payloads on the
// config topics, which Home Assistant treats as retraction.
type Publisher struct {
	broker Broker
	qos    byte
}

// NewPublisher creates a Publisher over a connected broker.
func NewPublisher(broker Broker, qos byte) *Publisher {
	return &Publisher{broker: broker, qos: qos}
}

// discoveryPayload is the Home Assistant discovery config document.
type discoveryPayload struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic"`
	AvailabilityTopic string          `json:"availability_topic"`
	DeviceClass       string          `json:"device_class,omitempty"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	PayloadOn         string          `json:"payload_on,omitempty"`
	PayloadOff        string          `json:"payload_off,omitempty"`
	EntityCategory    string          `json:"entity_category,omitempty"`
	Device            discoveryDevice `json:"device"`
}

// discoveryDevice groups all capability entities under one HA device.
type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// capabilityEntity describes how one capability appears in discovery.
type capabilityEntity struct {
	capability  string
	component   string
	deviceClass string
	unit        string
	diagnostic  bool
}

// entities returns the discovery entities for a device's flagged
// capabilities, plus the RSSI diagnostic entity every device gets.
func entities(d *device.Device) []capabilityEntity {
	var out []capabilityEntity

	if d.HasTemperature {
		out = append(out, capabilityEntity{"temperature", mqtt.ComponentSensor, "temperature", "°C", false})
	}
	if d.HasHumidity {
		out = append(out, capabilityEntity{"humidity", mqtt.ComponentSensor, "humidity", "%", false})
	}
	if d.HasBattery {
		out = append(out, capabilityEntity{"battery", mqtt.ComponentSensor, "battery", "%", false})
	}
	if d.HasLight {
		out = append(out, capabilityEntity{"light", mqtt.ComponentSensor, "illuminance", "lx", false})
	}
	if d.HasMotion {
		out = append(out, capabilityEntity{"motion", mqtt.ComponentBinarySensor, motionDeviceClass(d.MotionSubtype), "", false})
	}
	if d.HasContact {
		out = append(out, capabilityEntity{"contact", mqtt.ComponentBinarySensor, contactDeviceClass(d.ContactSubtype), "", false})
	}

	out = append(out, capabilityEntity{"rssi", mqtt.ComponentSensor, "signal_strength", "dBm", true})
	return out
}

// PublishDiscovery announces (or re-announces) every entity of a device.
// Called on creation and after any shape change - rename, subtype change.
func (p *Publisher) PublishDiscovery(d *device.Device) error {
	topics := p.broker.Topics()

	for _, e := range entities(d) {
		payload := discoveryPayload{
			Name:              fmt.Sprintf("%s %s", d.Name, e.capability),
			UniqueID:          topics.UniqueID(d.ID, e.capability),
			StateTopic:        topics.State(e.component, d.ID, e.capability),
			AvailabilityTopic: topics.Availability(),
			DeviceClass:       e.deviceClass,
			UnitOfMeasurement: e.unit,
			Device: discoveryDevice{
				Identifiers:  []string{topics.UniqueID(d.ID, "device")},
				Name:         d.Name,
				Manufacturer: "lorabridge",
				Model:        "LoRa sensor",
			},
		}
		if e.component == mqtt.ComponentBinarySensor {
			payload.PayloadOn = "ON"
			payload.PayloadOff = "OFF"
		}
		if e.diagnostic {
			payload.EntityCategory = "diagnostic"
		}

		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding discovery for %s/%s: %w", d.ID, e.capability, err)
		}

		topic := topics.Discovery(e.component, d.ID, e.capability)
		if err := p.broker.Publish(topic, body, p.qos, true); err != nil {
			return fmt.Errorf("publishing discovery for %s/%s: %w", d.ID, e.capability, err)
		}
	}

	return nil
}

// RetractDiscovery removes a device's entities from the broker by
// publishing empty retained payloads on their config topics.
func (p *Publisher) RetractDiscovery(d *device.Device) error {
	topics := p.broker.Topics()

	for _, e := range entities(d) {
		topic := topics.Discovery(e.component, d.ID, e.capability)
		if err := p.broker.Publish(topic, nil, p.qos, true); err != nil {
			return fmt.Errorf("retracting discovery for %s/%s: %w", d.ID, e.capability, err)
		}
	}
	return nil
}

// PublishState updates the state topic of every flagged capability plus
// the RSSI diagnostic.
//
// While the broker is disconnected the reading is skipped silently; the
// next accepted reading republishes fresh values, so there is nothing to
// queue. Discovery and retraction are not skipped the same way - those
// are rare shape changes whose failure is worth a log line upstream.
func (p *Publisher) PublishState(d *device.Device) error {
	if !p.broker.IsConnected() {
		return nil
	}

	topics := p.broker.Topics()

	publish := func(component, capability, value string) error {
		topic := topics.State(component, d.ID, capability)
		if err := p.broker.Publish(topic, []byte(value), p.qos, true); err != nil {
			return fmt.Errorf("publishing state for %s/%s: %w", d.ID, capability, err)
		}
		return nil
	}

	if d.HasTemperature {
		if err := publish(mqtt.ComponentSensor, "temperature", formatFloat(d.Temperature)); err != nil {
			return err
		}
	}
	if d.HasHumidity {
		if err := publish(mqtt.ComponentSensor, "humidity", formatFloat(d.Humidity)); err != nil {
			return err
		}
	}
	if d.HasBattery {
		if err := publish(mqtt.ComponentSensor, "battery", formatFloat(d.Battery)); err != nil {
			return err
		}
	}
	if d.HasLight {
		if err := publish(mqtt.ComponentSensor, "light", formatFloat(d.Light)); err != nil {
			return err
		}
	}
	if d.HasMotion {
		if err := publish(mqtt.ComponentBinarySensor, "motion", onOff(d.Motion)); err != nil {
			return err
		}
	}
	if d.HasContact {
		if err := publish(mqtt.ComponentBinarySensor, "contact", onOff(d.Contact)); err != nil {
			return err
		}
	}

	return publish(mqtt.ComponentSensor, "rssi", strconv.Itoa(d.RSSI))
}

// contactDeviceClass maps a contact subtype to an HA device class.
func contactDeviceClass(t device.ContactType) string {
	switch t {
	case device.ContactTypeLeak:
		return "moisture"
	case device.ContactTypeSmoke:
		return "smoke"
	case device.ContactTypeCO:
		return "carbon_monoxide"
	case device.ContactTypeOccupancy:
		return "occupancy"
	default:
		return "opening"
	}
}

// motionDeviceClass maps a motion subtype to an HA device class.
func motionDeviceClass(t device.MotionType) string {
	switch t {
	case device.MotionTypeOccupancy:
		return "occupancy"
	case device.MotionTypeLeak:
		return "moisture"
	case device.MotionTypeSmoke:
		return "smoke"
	case device.MotionTypeCO:
		return "carbon_monoxide"
	default:
		return "motion"
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
