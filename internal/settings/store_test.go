package settings

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lorabridge/bridge-core/internal/frame"
	"github.com/lorabridge/bridge-core/internal/infrastructure/database"
	"github.com/lorabridge/bridge-core/internal/infrastructure/kv"
)

func testDefaults() Settings {
	return Settings{
		FrequencyMHz:    868.0,
		SpreadingFactor: 8,
		BandwidthHz:     125000,
		CodingRate:      5,
		PreambleLength:  6,
		SyncWord:        0x12,
		SharedSecret:    "xy",
		EncryptionMode:  "xor",
		EncryptionKey:   "4ba33f9c",
		MQTTEnabled:     false,
		MQTTHost:        "localhost",
		MQTTPort:        1883,
	}
}

func testStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "settings_test.db"),
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

	store, err := kv.New(db, "settings")
	if err != nil {
		t.Fatalf("kv.New() error = %v", err)
	}
	return NewStore(store, testDefaults())
}

func TestLoadDefaultsWhenEmpty(t *testing.T) {
	s := testStore(t)

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != testDefaults() {
		t.Errorf("Load() on empty store = %+v, want defaults", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	want := testDefaults()
	want.SpreadingFactor = 10
	want.SharedSecret = "rotated"
	want.EncryptionMode = "aes"
	want.EncryptionKey = "00112233445566778899aabbccddeeff"
	want.MQTTEnabled = true
	want.MQTTHost = "broker.example"
	want.MQTTUsername = "bridge"
	want.MQTTPassword = "hunter2"

	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	s := testStore(t)

	bad := testDefaults()
	bad.SpreadingFactor = 42
	if err := s.Save(context.Background(), bad); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("Save(invalid) error = %v, want ErrInvalidSettings", err)
	}
}

func TestReset(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	changed := testDefaults()
	changed.SharedSecret = "changed"
	if err := s.Save(ctx, changed); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.SharedSecret != "xy" {
		t.Errorf("SharedSecret after Reset = %q, want default", got.SharedSecret)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"valid", func(_ *Settings) {}, ""},
		{"zero frequency", func(s *Settings) { s.FrequencyMHz = 0 }, "frequency"},
		{"sf too high", func(s *Settings) { s.SpreadingFactor = 13 }, "spreading_factor"},
		{"cr too low", func(s *Settings) { s.CodingRate = 4 }, "coding_rate"},
		{"empty secret", func(s *Settings) { s.SharedSecret = "" }, "shared_secret"},
		{"bad mode", func(s *Settings) { s.EncryptionMode = "rot13" }, "encryption_mode"},
		{"keyed mode without key", func(s *Settings) { s.EncryptionKey = "" }, "encryption_key"},
		{
			"mqtt without host",
			func(s *Settings) {
				s.MQTTEnabled = true
				s.MQTTHost = ""
			},
			"mqtt_host",
		},
		{
			"none mode needs no key",
			func(s *Settings) {
				s.EncryptionMode = "none"
				s.EncryptionKey = ""
			},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testDefaults()
			tt.mutate(&s)

			err := s.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("Validate() error = %v, want ErrInvalidSettings", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDecoderFromSettings(t *testing.T) {
	s := testDefaults()
	d, err := s.Decoder()
	if err != nil {
		t.Fatalf("Decoder() error = %v", err)
	}
	if d.Mode() != frame.ModeXOR {
		t.Errorf("Decoder().Mode() = %v, want xor", d.Mode())
	}
}
