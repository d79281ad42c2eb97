package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/lorabridge/bridge-core/internal/device"
	"github.com/lorabridge/bridge-core/internal/infrastructure/logging"
)

// birthPayloadOnline is what Home Assistant publishes on its birth topic
// once it has finished starting.
const birthPayloadOnline = "online"

// birthTimeout bounds how long the birth handler waits for the device
// snapshot; the handler runs on an MQTT delivery goroutine.
const birthTimeout = 5 * time.Second

// DeviceLister provides a value snapshot of the paired device table.
// Implemented by the gateway's command surface.
type DeviceLister interface {
	Devices(ctx context.Context) ([]device.Device, error)
}

// RepublishOnBirth returns an MQTT message handler for Home Assistant's
// birth topic.
//
// A restarted Home Assistant may have lost the bridge's entities (fresh
// install, wiped retained messages), so when it announces itself the
// handler publishes every device's discovery configs again. Payloads other
// than "online" are ignored.
func RepublishOnBirth(devices DeviceLister, publisher *Publisher, logger *logging.Logger) func(topic string, payload []byte) error {
	log := logger.With("component", "sink")

	return func(_ string, payload []byte) error {
		if string(payload) != birthPayloadOnline {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), birthTimeout)
		defer cancel()

		snapshot, err := devices.Devices(ctx)
		if err != nil {
			return fmt.Errorf("listing devices for discovery republish: %w", err)
		}

		for i := range snapshot {
			if err := publisher.PublishDiscovery(&snapshot[i]); err != nil {
				log.Warn("discovery republish failed", "device_id", snapshot[i].ID, "error", err)
			}
		}

		log.Info("home assistant back online, discovery republished", "devices", len(snapshot))
		return nil
	}
}
