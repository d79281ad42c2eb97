package gateway

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/lorabridge/bridge-core/internal/activity"
	"github.com/lorabridge/bridge-core/internal/device"
	"github.com/lorabridge/bridge-core/internal/frame"
	"github.com/lorabridge/bridge-core/internal/infrastructure/logging"
	"github.com/lorabridge/bridge-core/internal/settings"
	"github.com/lorabridge/bridge-core/internal/sink"
	"github.com/lorabridge/bridge-core/internal/telemetry"
)

// housekeepingInterval is how often the loop wakes without traffic to
// log staleness information.
const housekeepingInterval = time.Minute

// Frame is one raw radio frame as delivered by the frame source.
type Frame struct {
	// Payload is the frame body, possibly encrypted.
	Payload []byte

	// RSSI is the received signal strength in dBm.
	RSSI int
}

// Stats are the loop's traffic counters.
type Stats struct {
	PacketsReceived uint64
	PacketsRejected uint64
	LastPacketAt    time.Time
}

// Deps carries the collaborators the gateway loop drives.
type Deps struct {
	Registry *device.Registry
	Devices  *device.Store
	Settings *settings.Store
	Current  settings.Settings
	Fanout   *sink.Fanout
	Activity *activity.Log
	Frames   <-chan Frame
	Logger   *logging.Logger
}

// Gateway is the single-goroutine processing loop.
//
// All fields below commands are owned by the loop goroutine; external
// callers reach them only through the command methods in commands.go.
type Gateway struct {
	commands chan func(ctx context.Context)
	stopped  chan struct{}

	registry *device.Registry
	devices  *device.Store
	store    *settings.Store
	current  settings.Settings
	decoder  *frame.Decoder
	parser   *telemetry.Parser
	fanout   *sink.Fanout
	activity *activity.Log
	frames   <-chan Frame
	logger   *logging.Logger

	stats     Stats
	startedAt time.Time

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Gateway from its dependencies.
//
// The decoder and parser are built from the current settings; an invalid
// encryption configuration fails here rather than on the first frame.
func New(deps Deps) (*Gateway, error) {
	decoder, err := deps.Current.Decoder()
	if err != nil {
		return nil, err
	}

	return &Gateway{
		commands: make(chan func(ctx context.Context)),
		stopped:  make(chan struct{}),
		registry: deps.Registry,
		devices:  deps.Devices,
		store:    deps.Settings,
		current:  deps.Current,
		decoder:  decoder,
		parser:   telemetry.NewParser(deps.Current.SharedSecret),
		fanout:   deps.Fanout,
		activity: deps.Activity,
		frames:   deps.Frames,
		logger:   deps.Logger.With("component", "gateway"),
		now:      time.Now,
	}, nil
}

// Run processes frames and commands until the context is cancelled or the
// frame channel closes. It must be called exactly once.
func (g *Gateway) Run(ctx context.Context) error {
	defer close(g.stopped)

	g.startedAt = g.now()
	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()

	g.logger.Info("gateway loop started")

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("gateway loop stopping", "reason", ctx.Err())
			return nil

		case f, ok := <-g.frames:
			if !ok {
				g.logger.Info("frame source closed, gateway loop stopping")
				return nil
			}
			g.handleFrame(ctx, f)

		case fn := <-g.commands:
			fn(ctx)

		case now := <-ticker.C:
			g.housekeeping(now)
		}
	}
}

// handleFrame runs one frame through decode, parse and dispatch.
func (g *Gateway) handleFrame(ctx context.Context, f Frame) {
	now := g.now()
	g.stats.PacketsReceived++
	g.stats.LastPacketAt = now

	plaintext := g.decoder.Decode(f.Payload)

	reading, err := g.parser.Parse(plaintext)
	if err != nil {
		g.stats.PacketsRejected++
		switch {
		case errors.Is(err, telemetry.ErrSecretMismatch):
			g.logger.Warn("frame rejected: shared secret mismatch", "rssi", f.RSSI)
		case errors.Is(err, telemetry.ErrMissingIdentifier):
			g.logger.Warn("frame rejected: no device identifier", "rssi", f.RSSI)
		default:
			// Garbage frames are routine under a wrong key or radio noise.
			g.logger.Debug("frame rejected: malformed record", "rssi", f.RSSI, "error", err)
		}
		return
	}

	if d, ok := g.registry.Lookup(reading.DeviceID); ok {
		d.RSSI = f.RSSI
		if _, err := g.registry.ApplyReading(reading, now); err != nil {
			g.logger.Error("applying reading failed", "device_id", reading.DeviceID, "error", err)
			return
		}
		g.fanout.ReadingApplied(d, reading)
		g.activity.Record(now, d.Name, readingSummary(reading))
		return
	}

	d, err := g.registry.CreateFromReading(reading, now)
	if err != nil {
		if errors.Is(err, device.ErrTableFull) {
			g.logger.Warn("device table full, pairing rejected", "device_id", reading.DeviceID)
			g.activity.Recordf(now, reading.DeviceID, "pairing rejected: table full")
			return
		}
		g.logger.Error("pairing device failed", "device_id", reading.DeviceID, "error", err)
		return
	}

	d.RSSI = f.RSSI
	g.fanout.DeviceCreated(d)
	g.fanout.ReadingApplied(d, reading)
	g.persistDevices(ctx)

	g.logger.Info("device paired",
		"device_id", d.ID, "capabilities", d.CapabilityCount(), "rssi", f.RSSI)
	g.activity.Recordf(now, d.Name, "paired with %d capabilities", d.CapabilityCount())
}

// readingSummary renders the fields an accepted reading reported, wire
// key per value, e.g. "t=21.5 hu=48 m=on".
func readingSummary(r *telemetry.Reading) string {
	var b strings.Builder
	add := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
	}

	if r.Temperature != nil {
		add("t", strconv.FormatFloat(*r.Temperature, 'f', -1, 64))
	}
	if r.Humidity != nil {
		add("hu", strconv.FormatFloat(*r.Humidity, 'f', -1, 64))
	}
	if r.Battery != nil {
		add("b", strconv.FormatFloat(*r.Battery, 'f', -1, 64))
	}
	if r.Light != nil {
		add("l", strconv.FormatFloat(*r.Light, 'f', -1, 64))
	}
	if r.Motion != nil {
		add("m", onOffWord(*r.Motion))
	}
	if r.Contact != nil {
		add("c", onOffWord(*r.Contact))
	}

	if b.Len() == 0 {
		return "reading (no fields)"
	}
	return b.String()
}

func onOffWord(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// persistDevices saves the device table after a structural mutation.
// A failed save is logged and the gateway keeps running on its in-memory
// state; the next structural mutation retries implicitly.
func (g *Gateway) persistDevices(ctx context.Context) {
	if err := g.devices.Save(ctx, g.registry.Devices()); err != nil {
		g.logger.Error("persisting device table failed", "error", err)
	}
}

// housekeeping logs staleness once a minute. Stale devices are reported,
// never pruned; a sensor with a flat battery should still be listed.
func (g *Gateway) housekeeping(now time.Time) {
	total := g.registry.Count()
	active := g.registry.ActiveCount(now)
	if stale := total - active; stale > 0 {
		g.logger.Debug("stale devices", "stale", stale, "total", total)
	}
}
