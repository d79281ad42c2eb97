package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lorabridge/bridge-core/internal/accessory"
	"github.com/lorabridge/bridge-core/internal/activity"
	"github.com/lorabridge/bridge-core/internal/device"
	"github.com/lorabridge/bridge-core/internal/gateway"
	"github.com/lorabridge/bridge-core/internal/infrastructure/config"
	"github.com/lorabridge/bridge-core/internal/infrastructure/database"
	"github.com/lorabridge/bridge-core/internal/infrastructure/kv"
	"github.com/lorabridge/bridge-core/internal/infrastructure/logging"
	"github.com/lorabridge/bridge-core/internal/settings"
	"github.com/lorabridge/bridge-core/internal/sink"
	_ "github.com/lorabridge/bridge-core/migrations"
)

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Host: "127.0.0.1",
		Port: 0,
		Timeouts: config.APITimeoutConfig{
			Read:  5,
			Write: 5,
			Idle:  10,
		},
	}
}

// testServer wires a live gateway loop behind an API router.
func testServer(t *testing.T, apiCfg config.APIConfig) (http.Handler, chan gateway.Frame) {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "api_test.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	deviceKV, err := kv.New(db, "device")
	if err != nil {
		t.Fatalf("kv.New(device) error = %v", err)
	}
	settingsKV, err := kv.New(db, "settings")
	if err != nil {
		t.Fatalf("kv.New(settings) error = %v", err)
	}

	defaults := settings.Settings{
		FrequencyMHz:    868.0,
		SpreadingFactor: 8,
		BandwidthHz:     125000,
		CodingRate:      5,
		PreambleLength:  6,
		SyncWord:        0x12,
		SharedSecret:    "xy",
		EncryptionMode:  "none",
	}

	logger := logging.Default()
	frames := make(chan gateway.Frame, 4)
	manager := accessory.NewManager(accessory.NewLoopback(), logger)

	gw, err := gateway.New(gateway.Deps{
		Registry: device.NewRegistry(),
		Devices:  device.NewStore(deviceKV),
		Settings: settings.NewStore(settingsKV, defaults),
		Current:  defaults,
		Fanout:   sink.NewFanout(manager, nil, nil, logger),
		Activity: activity.NewLog(),
		Frames:   frames,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("gateway.New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		gw.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	server, err := New(Deps{
		Config:   apiCfg,
		Logger:   logger,
		Gateway:  gw,
		Version:  "test",
		Database: db,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return server.buildRouter(), frames
}

// doRequest runs one request through the router and decodes the JSON body.
func doRequest(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

// pairDevice injects a frame and waits for the device to appear.
func pairDevice(t *testing.T, router http.Handler, frames chan gateway.Frame, id, fields string) {
	t.Helper()

	frames <- gateway.Frame{
		Payload: []byte(fmt.Sprintf(`{"k":"xy","id":%q,%s}`, id, fields)),
		RSSI:    -70,
	}

	deadline := time.After(2 * time.Second)
	for {
		rec, _ := doRequest(t, router, http.MethodGet, "/api/v1/devices/"+id, "")
		if rec.Code == http.StatusOK {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("device %s never appeared", id)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHealth(t *testing.T) {
	router, _ := testServer(t, testAPIConfig())

	rec, body := doRequest(t, router, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestDeviceEndpoints(t *testing.T) {
	router, frames := testServer(t, testAPIConfig())
	pairDevice(t, router, frames, "s1", `"t":21.5,"c":"on"`)

	rec, body := doRequest(t, router, http.MethodGet, "/api/v1/devices/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if body["count"].(float64) != 1 {
		t.Errorf("count = %v, want 1", body["count"])
	}

	rec, dev := doRequest(t, router, http.MethodGet, "/api/v1/devices/s1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if dev["name"] != "s1" || dev["contact_type"] != "contact" {
		t.Errorf("device = %v", dev)
	}
	if _, present := dev["motion_type"]; present {
		t.Error("motion_type present on a device without motion")
	}

	rec, _ = doRequest(t, router, http.MethodPatch, "/api/v1/devices/s1", `{"name":"Front Door"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("rename status = %d", rec.Code)
	}

	rec, _ = doRequest(t, router, http.MethodPut, "/api/v1/devices/s1/type", `{"capability":"contact","type":"leak"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("retype status = %d", rec.Code)
	}

	_, dev = doRequest(t, router, http.MethodGet, "/api/v1/devices/s1", "")
	if dev["name"] != "Front Door" || dev["contact_type"] != "leak" {
		t.Errorf("after mutations device = %v", dev)
	}

	rec, _ = doRequest(t, router, http.MethodPut, "/api/v1/devices/s1/type", `{"capability":"motion","type":"leak"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("retype missing capability status = %d, want 400", rec.Code)
	}

	rec, _ = doRequest(t, router, http.MethodDelete, "/api/v1/devices/s1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec, _ = doRequest(t, router, http.MethodGet, "/api/v1/devices/s1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestRenameValidation(t *testing.T) {
	router, frames := testServer(t, testAPIConfig())
	pairDevice(t, router, frames, "s1", `"t":1`)

	rec, _ := doRequest(t, router, http.MethodPatch, "/api/v1/devices/s1", `{"name":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty name status = %d, want 400", rec.Code)
	}

	rec, _ = doRequest(t, router, http.MethodPatch, "/api/v1/devices/missing", `{"name":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing device status = %d, want 404", rec.Code)
	}
}

func TestActivityEndpoints(t *testing.T) {
	router, frames := testServer(t, testAPIConfig())
	pairDevice(t, router, frames, "s1", `"t":1`)

	rec, body := doRequest(t, router, http.MethodGet, "/api/v1/activity/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if body["count"].(float64) < 1 {
		t.Fatalf("count = %v, want >= 1", body["count"])
	}

	rec, _ = doRequest(t, router, http.MethodDelete, "/api/v1/activity/0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}

	rec, _ = doRequest(t, router, http.MethodDelete, "/api/v1/activity/99", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("clear out of range status = %d, want 404", rec.Code)
	}

	_, body = doRequest(t, router, http.MethodGet, "/api/v1/activity/", "")
	entries := body["entries"].([]any)
	if !entries[0].(map[string]any)["cleared"].(bool) {
		t.Error("entry not tombstoned")
	}
}

func TestSettingsEndpoints(t *testing.T) {
	router, _ := testServer(t, testAPIConfig())

	rec, body := doRequest(t, router, http.MethodGet, "/api/v1/settings/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if body["shared_secret"] != "xy" {
		t.Errorf("shared_secret = %v", body["shared_secret"])
	}
	if body["mqtt_password"] != "" {
		t.Errorf("mqtt_password = %v, want blanked", body["mqtt_password"])
	}

	rec, _ = doRequest(t, router, http.MethodPut, "/api/v1/settings/", `{"shared_secret":"rotated"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}

	_, body = doRequest(t, router, http.MethodGet, "/api/v1/settings/", "")
	if body["shared_secret"] != "rotated" {
		t.Errorf("shared_secret after update = %v", body["shared_secret"])
	}
	// Partial update must not clobber the rest of the document.
	if body["spreading_factor"].(float64) != 8 {
		t.Errorf("spreading_factor = %v, want 8", body["spreading_factor"])
	}

	rec, _ = doRequest(t, router, http.MethodPut, "/api/v1/settings/", `{"spreading_factor":42}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid settings status = %d, want 400", rec.Code)
	}

	// Factory reset reverts the earlier rotation.
	rec, body = doRequest(t, router, http.MethodPost, "/api/v1/settings/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if body["shared_secret"] != "xy" {
		t.Errorf("shared_secret after reset = %v, want xy", body["shared_secret"])
	}

	_, body = doRequest(t, router, http.MethodGet, "/api/v1/settings/", "")
	if body["shared_secret"] != "xy" {
		t.Errorf("shared_secret read-back after reset = %v, want xy", body["shared_secret"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	router, frames := testServer(t, testAPIConfig())
	pairDevice(t, router, frames, "s1", `"t":1`)

	rec, body := doRequest(t, router, http.MethodGet, "/api/v1/system/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	gw := body["gateway"].(map[string]any)
	if gw["device_count"].(float64) != 1 {
		t.Errorf("device_count = %v, want 1", gw["device_count"])
	}
	if gw["packets_received"].(float64) < 1 {
		t.Errorf("packets_received = %v, want >= 1", gw["packets_received"])
	}

	schema := body["schema"].(map[string]any)
	if schema["pending"].(float64) != 0 {
		t.Errorf("schema pending = %v, want 0", schema["pending"])
	}
	if schema["applied"].(float64) < 1 {
		t.Errorf("schema applied = %v, want >= 1", schema["applied"])
	}
	if schema["version"] == "" {
		t.Error("schema version empty")
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := testAPIConfig()
	cfg.Auth = config.APIAuthConfig{
		Enabled:  true,
		Username: "admin",
		// sha256("secret")
		PasswordSHA256: "2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b",
	}
	router, _ := testServer(t, cfg)

	// Health stays open.
	rec, _ := doRequest(t, router, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no credentials status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/devices/", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/devices/", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("good credentials status = %d, want 200", rec.Code)
	}
}
