package settings

import (
	"fmt"
	"strings"

	"github.com/lorabridge/bridge-core/internal/frame"
	"github.com/lorabridge/bridge-core/internal/infrastructure/config"
)

// Settings are the runtime-mutable gateway parameters.
//
// The YAML config provides defaults; anything the operator changes through
// the management API is persisted in the durable store and overlaid on top
// of the config at the next startup. Radio parameters must match the
// sensor fleet, so changing them is an explicit operator action, never
// automatic.
type Settings struct {
	// Radio modulation parameters handed to the receiver collaborator.
	FrequencyMHz    float64 `json:"frequency_mhz"`
	SpreadingFactor int     `json:"spreading_factor"`
	BandwidthHz     int     `json:"bandwidth_hz"`
	CodingRate      int     `json:"coding_rate"`
	PreambleLength  int     `json:"preamble_length"`
	SyncWord        int     `json:"sync_word"`

	// SharedSecret every telemetry record must carry.
	SharedSecret string `json:"shared_secret"`

	// Frame decryption.
	EncryptionMode string `json:"encryption_mode"`
	EncryptionKey  string `json:"encryption_key"`

	// MQTT sink credentials.
	MQTTEnabled  bool   `json:"mqtt_enabled"`
	MQTTHost     string `json:"mqtt_host"`
	MQTTPort     int    `json:"mqtt_port"`
	MQTTUsername string `json:"mqtt_username"`
	MQTTPassword string `json:"mqtt_password"`
}

// FromConfig builds the default Settings from the loaded configuration.
func FromConfig(cfg *config.Config) Settings {
	return Settings{
		FrequencyMHz:    cfg.Radio.FrequencyMHz,
		SpreadingFactor: cfg.Radio.SpreadingFactor,
		BandwidthHz:     cfg.Radio.BandwidthHz,
		CodingRate:      cfg.Radio.CodingRate,
		PreambleLength:  cfg.Radio.PreambleLength,
		SyncWord:        cfg.Radio.SyncWord,
		SharedSecret:    cfg.Radio.SharedSecret,
		EncryptionMode:  cfg.Encryption.Mode,
		EncryptionKey:   cfg.Encryption.Key,
		MQTTEnabled:     cfg.MQTT.Enabled,
		MQTTHost:        cfg.MQTT.Broker.Host,
		MQTTPort:        cfg.MQTT.Broker.Port,
		MQTTUsername:    cfg.MQTT.Auth.Username,
		MQTTPassword:    cfg.MQTT.Auth.Password,
	}
}

// Validate checks the settings for consistency.
//
// Returns:
//   - error: Description of the first validation failure, or nil
func (s Settings) Validate() error {
	var errs []string

	if s.FrequencyMHz <= 0 {
		errs = append(errs, "frequency_mhz must be positive")
	}
	if s.SpreadingFactor < 6 || s.SpreadingFactor > 12 {
		errs = append(errs, "spreading_factor must be between 6 and 12")
	}
	if s.CodingRate < 5 || s.CodingRate > 8 {
		errs = append(errs, "coding_rate must be between 5 and 8")
	}
	if s.BandwidthHz <= 0 {
		errs = append(errs, "bandwidth_hz must be positive")
	}
	if s.SharedSecret == "" {
		errs = append(errs, "shared_secret is required")
	}

	if _, err := frame.ParseMode(s.EncryptionMode); err != nil {
		errs = append(errs, "encryption_mode must be none, xor or aes")
	} else if strings.ToLower(s.EncryptionMode) != "none" && s.EncryptionKey == "" {
		errs = append(errs, "encryption_key is required for keyed modes")
	}

	if s.MQTTEnabled {
		if s.MQTTHost == "" {
			errs = append(errs, "mqtt_host is required when mqtt is enabled")
		}
		if s.MQTTPort < 1 || s.MQTTPort > 65535 {
			errs = append(errs, "mqtt_port must be between 1 and 65535")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(errs, "; "))
	}
	return nil
}

// Decoder builds the frame decoder these settings describe.
func (s Settings) Decoder() (*frame.Decoder, error) {
	return frame.NewDecoderFromConfig(s.EncryptionMode, s.EncryptionKey)
}

// ApplyMQTT overlays the MQTT credential settings onto an MQTT config.
func (s Settings) ApplyMQTT(cfg config.MQTTConfig) config.MQTTConfig {
	cfg.Enabled = s.MQTTEnabled
	cfg.Broker.Host = s.MQTTHost
	cfg.Broker.Port = s.MQTTPort
	cfg.Auth.Username = s.MQTTUsername
	cfg.Auth.Password = s.MQTTPassword
	return cfg
}
