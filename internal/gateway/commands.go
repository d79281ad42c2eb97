package gateway

import (
	"context"
	"time"

	"github.com/lorabridge/bridge-core/internal/activity"
	"github.com/lorabridge/bridge-core/internal/device"
	"github.com/lorabridge/bridge-core/internal/settings"
	"github.com/lorabridge/bridge-core/internal/telemetry"
)

// Status is the gateway's health snapshot for the management API.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	PacketsReceived uint64    `json:"packets_received"`
	PacketsRejected uint64    `json:"packets_rejected"`
	LastPacketAt    time.Time `json:"last_packet_at"`
	DeviceCount     int       `json:"device_count"`
	ActiveDevices   int       `json:"active_devices"`
}

// exec posts fn to the loop and waits for it to run.
//
// Safe for concurrent use; this is the only door into the loop-owned
// state. fn executes on the loop goroutine with the loop's context.
func (g *Gateway) exec(ctx context.Context, fn func(ctx context.Context)) error {
	done := make(chan struct{})

	select {
	case g.commands <- func(loopCtx context.Context) {
		fn(loopCtx)
		close(done)
	}:
	case <-ctx.Done():
		return ctx.Err()
	case <-g.stopped:
		return ErrStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-g.stopped:
		// The loop may have run the command on its final iteration.
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Devices returns a value snapshot of the device table in registration
// order. The copies are safe to read after the call returns.
func (g *Gateway) Devices(ctx context.Context) ([]device.Device, error) {
	var out []device.Device
	err := g.exec(ctx, func(context.Context) {
		live := g.registry.Devices()
		out = make([]device.Device, len(live))
		for i, d := range live {
			out[i] = *d
		}
	})
	return out, err
}

// RenameDevice changes a device's display name, rebinds its accessory
// under a fresh identifier and persists the table.
func (g *Gateway) RenameDevice(ctx context.Context, id, name string) error {
	var opErr error
	err := g.exec(ctx, func(loopCtx context.Context) {
		oldName := ""
		if cur, ok := g.registry.Lookup(id); ok {
			oldName = cur.Name
		}

		d, err := g.registry.Rename(id, name)
		if err != nil {
			opErr = err
			return
		}
		g.fanout.DeviceChanged(d)
		g.persistDevices(loopCtx)
		g.activity.Recordf(g.now(), d.Name, "renamed from %s", oldName)
	})
	if err != nil {
		return err
	}
	return opErr
}

// SetContactType changes a device's contact subtype, rebinds and persists.
func (g *Gateway) SetContactType(ctx context.Context, id string, t device.ContactType) error {
	var opErr error
	err := g.exec(ctx, func(loopCtx context.Context) {
		d, err := g.registry.SetContactType(id, t)
		if err != nil {
			opErr = err
			return
		}
		g.fanout.DeviceChanged(d)
		g.persistDevices(loopCtx)
		g.activity.Recordf(g.now(), d.Name, "contact type set to %s", t)
	})
	if err != nil {
		return err
	}
	return opErr
}

// SetMotionType changes a device's motion subtype, rebinds and persists.
func (g *Gateway) SetMotionType(ctx context.Context, id string, t device.MotionType) error {
	var opErr error
	err := g.exec(ctx, func(loopCtx context.Context) {
		d, err := g.registry.SetMotionType(id, t)
		if err != nil {
			opErr = err
			return
		}
		g.fanout.DeviceChanged(d)
		g.persistDevices(loopCtx)
		g.activity.Recordf(g.now(), d.Name, "motion type set to %s", t)
	})
	if err != nil {
		return err
	}
	return opErr
}

// RemoveDevice unpairs a device: accessory unbound, discovery retracted,
// slot freed, table persisted.
func (g *Gateway) RemoveDevice(ctx context.Context, id string) error {
	var opErr error
	err := g.exec(ctx, func(loopCtx context.Context) {
		d, err := g.registry.Remove(id)
		if err != nil {
			opErr = err
			return
		}
		g.fanout.DeviceRemoved(d)
		g.persistDevices(loopCtx)
		g.activity.Record(g.now(), d.Name, "removed")
	})
	if err != nil {
		return err
	}
	return opErr
}

// Activity returns the activity log newest-first.
func (g *Gateway) Activity(ctx context.Context) ([]activity.Entry, error) {
	var out []activity.Entry
	err := g.exec(ctx, func(context.Context) {
		out = g.activity.Entries()
	})
	return out, err
}

// ClearActivityEntry tombstones one activity entry by newest-first index.
func (g *Gateway) ClearActivityEntry(ctx context.Context, index int) error {
	var opErr error
	err := g.exec(ctx, func(context.Context) {
		opErr = g.activity.ClearEntry(index)
	})
	if err != nil {
		return err
	}
	return opErr
}

// Settings returns the live settings.
func (g *Gateway) Settings(ctx context.Context) (settings.Settings, error) {
	var out settings.Settings
	err := g.exec(ctx, func(context.Context) {
		out = g.current
	})
	return out, err
}

// UpdateSettings validates, persists and applies new settings.
//
// The decoder and parser are rebuilt immediately, so the next frame is
// handled under the new secret and encryption. Radio parameters and MQTT
// credentials take effect on the next restart; that is logged, not hidden.
func (g *Gateway) UpdateSettings(ctx context.Context, set settings.Settings) error {
	var opErr error
	err := g.exec(ctx, func(loopCtx context.Context) {
		decoder, err := set.Decoder()
		if err != nil {
			opErr = err
			return
		}
		if err := g.store.Save(loopCtx, set); err != nil {
			opErr = err
			return
		}

		g.decoder = decoder
		g.parser = telemetry.NewParser(set.SharedSecret)

		if set.MQTTEnabled != g.current.MQTTEnabled ||
			set.MQTTHost != g.current.MQTTHost ||
			set.MQTTPort != g.current.MQTTPort {
			g.logger.Info("mqtt settings changed, restart required to apply")
		}
		g.current = set

		g.activity.Record(g.now(), "", "settings updated")
		g.logger.Info("settings updated")
	})
	if err != nil {
		return err
	}
	return opErr
}

// ResetSettings drops every persisted setting, reverting the gateway to
// its config-file defaults. The decoder and parser are rebuilt from the
// defaults immediately, like UpdateSettings. Returns the settings now in
// effect.
func (g *Gateway) ResetSettings(ctx context.Context) (settings.Settings, error) {
	var out settings.Settings
	var opErr error
	err := g.exec(ctx, func(loopCtx context.Context) {
		if err := g.store.Reset(loopCtx); err != nil {
			opErr = err
			return
		}

		// With the namespace cleared, Load yields pure defaults.
		def, err := g.store.Load(loopCtx)
		if err != nil {
			opErr = err
			return
		}
		decoder, err := def.Decoder()
		if err != nil {
			opErr = err
			return
		}

		g.decoder = decoder
		g.parser = telemetry.NewParser(def.SharedSecret)

		if def.MQTTEnabled != g.current.MQTTEnabled ||
			def.MQTTHost != g.current.MQTTHost ||
			def.MQTTPort != g.current.MQTTPort {
			g.logger.Info("mqtt settings changed, restart required to apply")
		}
		g.current = def
		out = def

		g.activity.Record(g.now(), "", "settings reset to defaults")
		g.logger.Info("settings reset to defaults")
	})
	if err != nil {
		return settings.Settings{}, err
	}
	return out, opErr
}

// Status returns the gateway's health snapshot.
func (g *Gateway) Status(ctx context.Context) (Status, error) {
	var out Status
	err := g.exec(ctx, func(context.Context) {
		now := g.now()
		out = Status{
			StartedAt:       g.startedAt,
			PacketsReceived: g.stats.PacketsReceived,
			PacketsRejected: g.stats.PacketsRejected,
			LastPacketAt:    g.stats.LastPacketAt,
			DeviceCount:     g.registry.Count(),
			ActiveDevices:   g.registry.ActiveCount(now),
		}
	})
	return out, err
}
