package gateway

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/lorabridge/bridge-core/internal/accessory"
	"github.com/lorabridge/bridge-core/internal/activity"
	"github.com/lorabridge/bridge-core/internal/device"
	"github.com/lorabridge/bridge-core/internal/infrastructure/database"
	"github.com/lorabridge/bridge-core/internal/infrastructure/kv"
	"github.com/lorabridge/bridge-core/internal/infrastructure/logging"
	"github.com/lorabridge/bridge-core/internal/settings"
	"github.com/lorabridge/bridge-core/internal/sink"
)

// testHarness bundles the loop-owned collaborators for inspection.
type testHarness struct {
	gateway  *Gateway
	frames   chan Frame
	loopback *accessory.Loopback
	devices  *device.Store
	log      *activity.Log
}

func testSettings() settings.Settings {
	return settings.Settings{
		FrequencyMHz:    868.0,
		SpreadingFactor: 8,
		BandwidthHz:     125000,
		CodingRate:      5,
		PreambleLength:  6,
		SyncWord:        0x12,
		SharedSecret:    "xy",
		EncryptionMode:  "none",
	}
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "gateway_test.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.ExecContext(context.Background(), `
		CREATE TABLE kv_store (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		)
	`); err != nil {
		t.Fatalf("creating kv_store table: %v", err)
	}

	deviceKV, err := kv.New(db, "device")
	if err != nil {
		t.Fatalf("kv.New(device) error = %v", err)
	}
	settingsKV, err := kv.New(db, "settings")
	if err != nil {
		t.Fatalf("kv.New(settings) error = %v", err)
	}

	logger := logging.Default()
	loopback := accessory.NewLoopback()
	registry := device.NewRegistry()
	log := activity.NewLog()
	devices := device.NewStore(deviceKV)
	frames := make(chan Frame, 4)

	g, err := New(Deps{
		Registry: registry,
		Devices:  devices,
		Settings: settings.NewStore(settingsKV, testSettings()),
		Current:  testSettings(),
		Fanout:   sink.NewFanout(accessory.NewManager(loopback, logger), nil, nil, logger),
		Activity: log,
		Frames:   frames,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testHarness{
		gateway:  g,
		frames:   frames,
		loopback: loopback,
		devices:  devices,
		log:      log,
	}
}

// startLoop runs the gateway loop for the duration of the test.
func (h *testHarness) startLoop(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.gateway.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func record(id string, fields string) []byte {
	if fields == "" {
		return []byte(fmt.Sprintf(`{"k":"xy","id":%q}`, id))
	}
	return []byte(fmt.Sprintf(`{"k":"xy","id":%q,%s}`, id, fields))
}

func TestHandleFramePairsDevice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.gateway.handleFrame(ctx, Frame{Payload: record("s1", `"t":21.5,"hu":48`), RSSI: -70})

	d, ok := h.gateway.registry.Lookup("s1")
	if !ok {
		t.Fatal("device not registered")
	}
	if !d.HasTemperature || !d.HasHumidity || d.HasMotion {
		t.Errorf("capability flags = temp:%v hum:%v motion:%v", d.HasTemperature, d.HasHumidity, d.HasMotion)
	}
	if d.Temperature != 21.5 {
		t.Errorf("Temperature = %v, want 21.5", d.Temperature)
	}
	if d.RSSI != -70 {
		t.Errorf("RSSI = %d, want -70", d.RSSI)
	}
	if d.ExternalID == 0 {
		t.Error("device not bound to an accessory")
	}
	if h.loopback.Count() != 1 {
		t.Errorf("accessory count = %d, want 1", h.loopback.Count())
	}

	// Pairing is a structural mutation; it must hit the durable store.
	persisted, err := h.devices.Load(ctx)
	if err != nil {
		t.Fatalf("loading snapshot: %v", err)
	}
	if len(persisted) != 1 || persisted[0].ID != "s1" {
		t.Errorf("persisted snapshot = %+v, want one device s1", persisted)
	}

	entries := h.log.Entries()
	if len(entries) != 1 {
		t.Fatalf("activity entries = %d, want 1", len(entries))
	}
	if entries[0].DeviceName != "s1" {
		t.Errorf("activity device = %q, want s1", entries[0].DeviceName)
	}
}

func TestHandleFrameAppliesReading(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.gateway.handleFrame(ctx, Frame{Payload: record("s1", `"t":21.5`), RSSI: -70})
	h.gateway.handleFrame(ctx, Frame{Payload: record("s1", `"t":23.0`), RSSI: -65})

	d, _ := h.gateway.registry.Lookup("s1")
	if d.Temperature != 23.0 {
		t.Errorf("Temperature = %v, want 23.0", d.Temperature)
	}
	if d.RSSI != -65 {
		t.Errorf("RSSI = %d, want -65", d.RSSI)
	}
	if h.gateway.registry.Count() != 1 {
		t.Errorf("device count = %d, want 1", h.gateway.registry.Count())
	}
	if got := h.gateway.stats.PacketsReceived; got != 2 {
		t.Errorf("PacketsReceived = %d, want 2", got)
	}
}

func TestHandleFrameRecordsReadingActivity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.gateway.handleFrame(ctx, Frame{Payload: record("s1", `"t":21.5`), RSSI: -70})
	h.gateway.handleFrame(ctx, Frame{Payload: record("s1", `"t":23,"m":"on"`), RSSI: -65})

	entries := h.log.Entries()
	if len(entries) != 2 {
		t.Fatalf("activity entries = %d, want pairing plus reading", len(entries))
	}
	if entries[0].DeviceName != "s1" {
		t.Errorf("reading entry device = %q, want s1", entries[0].DeviceName)
	}
	if entries[0].Message != "t=23 m=on" {
		t.Errorf("reading entry message = %q, want %q", entries[0].Message, "t=23 m=on")
	}

	// Rejected frames must leave the log untouched.
	h.gateway.handleFrame(ctx, Frame{Payload: []byte(`{"k":"nope","id":"s1","t":1}`)})
	if h.log.Len() != 2 {
		t.Errorf("activity entries after rejected frame = %d, want 2", h.log.Len())
	}
}

func TestHandleFrameRejections(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"wrong secret", []byte(`{"k":"nope","id":"s1","t":1}`)},
		{"missing identifier", []byte(`{"k":"xy","t":1}`)},
		{"garbage", []byte{0x01, 0xfe, 0x42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.gateway.handleFrame(context.Background(), Frame{Payload: tt.payload, RSSI: -80})

			if h.gateway.registry.Count() != 0 {
				t.Errorf("device count = %d, want 0", h.gateway.registry.Count())
			}
			if h.gateway.stats.PacketsRejected != 1 {
				t.Errorf("PacketsRejected = %d, want 1", h.gateway.stats.PacketsRejected)
			}
		})
	}
}

func TestHandleFrameTableFull(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < device.MaxDevices; i++ {
		h.gateway.handleFrame(ctx, Frame{Payload: record(fmt.Sprintf("s%d", i), `"t":1`)})
	}
	h.gateway.handleFrame(ctx, Frame{Payload: record("overflow", `"t":1`)})

	if h.gateway.registry.Count() != device.MaxDevices {
		t.Errorf("device count = %d, want %d", h.gateway.registry.Count(), device.MaxDevices)
	}
	if _, ok := h.gateway.registry.Lookup("overflow"); ok {
		t.Error("overflow device registered past capacity")
	}

	entries := h.log.Entries()
	if entries[0].DeviceName != "overflow" {
		t.Errorf("newest activity device = %q, want overflow", entries[0].DeviceName)
	}
}

func TestRenameDeviceRebinds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.gateway.handleFrame(ctx, Frame{Payload: record("s1", `"t":21.5`)})
	d, _ := h.gateway.registry.Lookup("s1")
	oldID := d.ExternalID

	h.startLoop(t)

	if err := h.gateway.RenameDevice(ctx, "s1", "Greenhouse"); err != nil {
		t.Fatalf("RenameDevice() error = %v", err)
	}

	devices, err := h.gateway.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if devices[0].Name != "Greenhouse" {
		t.Errorf("Name = %q, want Greenhouse", devices[0].Name)
	}
	if devices[0].ExternalID <= oldID {
		t.Errorf("ExternalID = %d, want > %d after rename", devices[0].ExternalID, oldID)
	}

	persisted, err := h.devices.Load(ctx)
	if err != nil {
		t.Fatalf("loading snapshot: %v", err)
	}
	if persisted[0].Name != "Greenhouse" {
		t.Errorf("persisted name = %q, want Greenhouse", persisted[0].Name)
	}
}

func TestRemoveDeviceUnbinds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.gateway.handleFrame(ctx, Frame{Payload: record("s1", `"t":21.5`)})
	h.startLoop(t)

	if err := h.gateway.RemoveDevice(ctx, "s1"); err != nil {
		t.Fatalf("RemoveDevice() error = %v", err)
	}
	if err := h.gateway.RemoveDevice(ctx, "s1"); !errors.Is(err, device.ErrNotFound) {
		t.Errorf("second RemoveDevice() error = %v, want ErrNotFound", err)
	}

	if h.loopback.Count() != 0 {
		t.Errorf("accessory count = %d, want 0", h.loopback.Count())
	}

	persisted, err := h.devices.Load(ctx)
	if err != nil {
		t.Fatalf("loading snapshot: %v", err)
	}
	if len(persisted) != 0 {
		t.Errorf("persisted devices = %d, want 0", len(persisted))
	}
}

func TestSetContactTypeRequiresCapability(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.gateway.handleFrame(ctx, Frame{Payload: record("s1", `"c":"on"`)})
	h.gateway.handleFrame(ctx, Frame{Payload: record("s2", `"t":1`)})
	h.startLoop(t)

	if err := h.gateway.SetContactType(ctx, "s1", device.ContactTypeLeak); err != nil {
		t.Fatalf("SetContactType() error = %v", err)
	}
	if err := h.gateway.SetContactType(ctx, "s2", device.ContactTypeLeak); !errors.Is(err, device.ErrCapabilityMissing) {
		t.Errorf("SetContactType(no capability) error = %v, want ErrCapabilityMissing", err)
	}

	devices, _ := h.gateway.Devices(ctx)
	if devices[0].ContactSubtype != device.ContactTypeLeak {
		t.Errorf("ContactSubtype = %v, want leak", devices[0].ContactSubtype)
	}
}

func TestUpdateSettingsSwapsParser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startLoop(t)

	next := testSettings()
	next.SharedSecret = "rotated"
	if err := h.gateway.UpdateSettings(ctx, next); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	got, err := h.gateway.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if got.SharedSecret != "rotated" {
		t.Errorf("SharedSecret = %q, want rotated", got.SharedSecret)
	}

	// Old-secret frames must now be rejected; new-secret frames accepted.
	h.frames <- Frame{Payload: record("s1", `"t":1`)}
	h.frames <- Frame{Payload: []byte(`{"k":"rotated","id":"s2","t":1}`)}

	deadline := time.After(2 * time.Second)
	for {
		devices, err := h.gateway.Devices(ctx)
		if err != nil {
			t.Fatalf("Devices() error = %v", err)
		}
		if len(devices) == 1 && devices[0].ID == "s2" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("devices = %+v, want exactly s2", devices)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startLoop(t)

	bad := testSettings()
	bad.SpreadingFactor = 42
	if err := h.gateway.UpdateSettings(ctx, bad); !errors.Is(err, settings.ErrInvalidSettings) {
		t.Errorf("UpdateSettings(invalid) error = %v, want ErrInvalidSettings", err)
	}

	got, _ := h.gateway.Settings(ctx)
	if got.SpreadingFactor != 8 {
		t.Errorf("SpreadingFactor after rejected update = %d, want 8", got.SpreadingFactor)
	}
}

func TestResetSettingsRevertsToDefaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startLoop(t)

	next := testSettings()
	next.SharedSecret = "rotated"
	if err := h.gateway.UpdateSettings(ctx, next); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	got, err := h.gateway.ResetSettings(ctx)
	if err != nil {
		t.Fatalf("ResetSettings() error = %v", err)
	}
	if got.SharedSecret != "xy" {
		t.Errorf("SharedSecret after reset = %q, want xy", got.SharedSecret)
	}

	live, err := h.gateway.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if live.SharedSecret != "xy" {
		t.Errorf("live SharedSecret = %q, want xy", live.SharedSecret)
	}

	entries, err := h.gateway.Activity(ctx)
	if err != nil {
		t.Fatalf("Activity() error = %v", err)
	}
	if entries[0].Message != "settings reset to defaults" {
		t.Errorf("activity message = %q", entries[0].Message)
	}

	// The parser follows the reset: default-secret frames pair again.
	h.frames <- Frame{Payload: record("s1", `"t":1`)}

	deadline := time.After(2 * time.Second)
	for {
		devices, err := h.gateway.Devices(ctx)
		if err != nil {
			t.Fatalf("Devices() error = %v", err)
		}
		if len(devices) == 1 && devices[0].ID == "s1" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("devices = %+v, want s1 paired under default secret", devices)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestActivityCommands(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.gateway.handleFrame(ctx, Frame{Payload: record("s1", `"t":1`)})
	h.startLoop(t)

	entries, err := h.gateway.Activity(ctx)
	if err != nil {
		t.Fatalf("Activity() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	if err := h.gateway.ClearActivityEntry(ctx, 0); err != nil {
		t.Fatalf("ClearActivityEntry() error = %v", err)
	}
	if err := h.gateway.ClearActivityEntry(ctx, 5); !errors.Is(err, activity.ErrIndexOutOfRange) {
		t.Errorf("ClearActivityEntry(5) error = %v, want ErrIndexOutOfRange", err)
	}

	entries, _ = h.gateway.Activity(ctx)
	if !entries[0].Cleared {
		t.Error("entry not tombstoned")
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.gateway.handleFrame(ctx, Frame{Payload: record("s1", `"t":1`)})
	h.gateway.handleFrame(ctx, Frame{Payload: []byte("garbage")})
	h.startLoop(t)

	status, err := h.gateway.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.PacketsReceived != 2 {
		t.Errorf("PacketsReceived = %d, want 2", status.PacketsReceived)
	}
	if status.PacketsRejected != 1 {
		t.Errorf("PacketsRejected = %d, want 1", status.PacketsRejected)
	}
	if status.DeviceCount != 1 || status.ActiveDevices != 1 {
		t.Errorf("DeviceCount/ActiveDevices = %d/%d, want 1/1", status.DeviceCount, status.ActiveDevices)
	}
	if status.LastPacketAt.IsZero() {
		t.Error("LastPacketAt is zero")
	}
}

func TestCommandsAfterStop(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.gateway.Run(ctx)
	}()
	cancel()
	<-done

	if _, err := h.gateway.Devices(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Devices() after stop error = %v, want ErrStopped", err)
	}
}
