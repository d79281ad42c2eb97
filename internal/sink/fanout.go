package sink

import (
	"github.com/lorabridge/bridge-core/internal/accessory"
	"github.com/lorabridge/bridge-core/internal/device"
	"github.com/lorabridge/bridge-core/internal/infrastructure/influxdb"
	"github.com/lorabridge/bridge-core/internal/infrastructure/logging"
	"github.com/lorabridge/bridge-core/internal/telemetry"
)

// Fanout delivers device events to every configured sink.
//
// Sinks are independent failure domains: a broker outage or a slow
// history writer must never stop readings from reaching the accessory
// binding, and vice versa. Every delivery error is logged and swallowed
// here; nothing propagates back into the gateway loop.
type Fanout struct {
	accessories *accessory.Manager
	publisher   *Publisher       // nil when the MQTT sink is disabled
	history     *influxdb.Client // nil when history is disabled
	logger      *logging.Logger
}

// NewFanout creates a Fanout. publisher and history may be nil.
func NewFanout(accessories *accessory.Manager, publisher *Publisher, history *influxdb.Client, logger *logging.Logger) *Fanout {
	return &Fanout{
		accessories: accessories,
		publisher:   publisher,
		history:     history,
		logger:      logger.With("component", "sink"),
	}
}

// DeviceCreated binds the accessory and announces the device on MQTT.
func (f *Fanout) DeviceCreated(d *device.Device) {
	if err := f.accessories.Bind(d); err != nil {
		f.logger.Error("accessory bind failed", "device_id", d.ID, "error", err)
	}

	if f.publisher != nil {
		if err := f.publisher.PublishDiscovery(d); err != nil {
			f.logger.Warn("discovery publish failed", "device_id", d.ID, "error", err)
		}
	}
}

// DeviceChanged rebinds the accessory under a fresh identifier and
// re-announces the device. Called after rename and subtype changes.
func (f *Fanout) DeviceChanged(d *device.Device) {
	if err := f.accessories.Rebind(d); err != nil {
		f.logger.Error("accessory rebind failed", "device_id", d.ID, "error", err)
	}

	if f.publisher != nil {
		if err := f.publisher.PublishDiscovery(d); err != nil {
			f.logger.Warn("discovery republish failed", "device_id", d.ID, "error", err)
		}
	}
}

// DeviceRemoved unbinds the accessory and retracts the MQTT entities.
func (f *Fanout) DeviceRemoved(d *device.Device) {
	if err := f.accessories.Unbind(d); err != nil {
		f.logger.Error("accessory unbind failed", "device_id", d.ID, "error", err)
	}

	if f.publisher != nil {
		if err := f.publisher.RetractDiscovery(d); err != nil {
			f.logger.Warn("discovery retraction failed", "device_id", d.ID, "error", err)
		}
	}
}

// ReadingApplied pushes a device's fresh values to every sink.
func (f *Fanout) ReadingApplied(d *device.Device, reading *telemetry.Reading) {
	if err := f.accessories.Push(d); err != nil {
		f.logger.Error("accessory push failed", "device_id", d.ID, "error", err)
	}

	if f.publisher != nil {
		if err := f.publisher.PublishState(d); err != nil {
			f.logger.Warn("state publish failed", "device_id", d.ID, "error", err)
		}
	}

	if f.history != nil {
		f.history.WriteTelemetry(d.ID, d.Name, reading.Fields())
		f.history.WriteSignal(d.ID, d.RSSI)
	}
}
