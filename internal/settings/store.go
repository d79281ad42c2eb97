package settings

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lorabridge/bridge-core/internal/infrastructure/kv"
)

// Persisted key names. One flat key per setting, mirroring the gateway's
// on-device storage layout.
const (
	keyFrequency       = "freq"
	keySpreadingFactor = "sf"
	keyBandwidth       = "bw"
	keyCodingRate      = "cr"
	keyPreamble        = "preamble"
	keySyncWord        = "syncword"
	keySharedSecret    = "secret"
	keyEncryptionMode  = "enc_mode"
	keyEncryptionKey   = "enc_key"
	keyMQTTEnabled     = "mqtt_enabled"
	keyMQTTHost        = "mqtt_host"
	keyMQTTPort        = "mqtt_port"
	keyMQTTUsername    = "mqtt_user"
	keyMQTTPassword    = "mqtt_pass"
)

// Store persists runtime settings in the durable key-value store.
type Store struct {
	kv       *kv.Store
	defaults Settings
}

// NewStore creates a Store whose Load falls back to the given defaults
// for any key never saved.
func NewStore(store *kv.Store, defaults Settings) *Store {
	return &Store{kv: store, defaults: defaults}
}

// Load returns the defaults overlaid with every persisted setting.
//
// Unparseable persisted values fall back to the default for that key: a
// corrupt settings namespace degrades to config-file behaviour instead of
// refusing to boot.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	raw, err := s.kv.All(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("loading settings: %w", err)
	}

	out := s.defaults

	if v, ok := raw[keyFrequency]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out.FrequencyMHz = f
		}
	}
	overlayInt(raw, keySpreadingFactor, &out.SpreadingFactor)
	overlayInt(raw, keyBandwidth, &out.BandwidthHz)
	overlayInt(raw, keyCodingRate, &out.CodingRate)
	overlayInt(raw, keyPreamble, &out.PreambleLength)
	overlayInt(raw, keySyncWord, &out.SyncWord)
	overlayString(raw, keySharedSecret, &out.SharedSecret)
	overlayString(raw, keyEncryptionMode, &out.EncryptionMode)
	overlayString(raw, keyEncryptionKey, &out.EncryptionKey)
	overlayBool(raw, keyMQTTEnabled, &out.MQTTEnabled)
	overlayString(raw, keyMQTTHost, &out.MQTTHost)
	overlayInt(raw, keyMQTTPort, &out.MQTTPort)
	overlayString(raw, keyMQTTUsername, &out.MQTTUsername)
	overlayString(raw, keyMQTTPassword, &out.MQTTPassword)

	return out, nil
}

// Save persists the full settings set, replacing any previous values.
func (s *Store) Save(ctx context.Context, set Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}

	pairs := map[string]string{
		keyFrequency:       strconv.FormatFloat(set.FrequencyMHz, 'f', -1, 64),
		keySpreadingFactor: strconv.Itoa(set.SpreadingFactor),
		keyBandwidth:       strconv.Itoa(set.BandwidthHz),
		keyCodingRate:      strconv.Itoa(set.CodingRate),
		keyPreamble:        strconv.Itoa(set.PreambleLength),
		keySyncWord:        strconv.Itoa(set.SyncWord),
		keySharedSecret:    set.SharedSecret,
		keyEncryptionMode:  set.EncryptionMode,
		keyEncryptionKey:   set.EncryptionKey,
		keyMQTTEnabled:     strconv.FormatBool(set.MQTTEnabled),
		keyMQTTHost:        set.MQTTHost,
		keyMQTTPort:        strconv.Itoa(set.MQTTPort),
		keyMQTTUsername:    set.MQTTUsername,
		keyMQTTPassword:    set.MQTTPassword,
	}

	if err := s.kv.Replace(ctx, pairs); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// Reset drops every persisted setting, reverting Load to pure defaults.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.kv.Clear(ctx); err != nil {
		return fmt.Errorf("resetting settings: %w", err)
	}
	return nil
}

func overlayString(raw map[string]string, key string, dst *string) {
	if v, ok := raw[key]; ok && v != "" {
		*dst = v
	}
}

func overlayInt(raw map[string]string, key string, dst *int) {
	if v, ok := raw[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overlayBool(raw map[string]string, key string, dst *bool) {
	if v, ok := raw[key]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
