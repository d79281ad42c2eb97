package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the LoRa bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
//
// Values in the radio, encryption and mqtt sections act as compiled-in
// defaults only: the settings package overlays any values persisted in the
// durable store on top of them at startup.
type Config struct {
	Gateway    GatewayConfig    `yaml:"gateway"`
	Database   DatabaseConfig   `yaml:"database"`
	Radio      RadioConfig      `yaml:"radio"`
	Encryption EncryptionConfig `yaml:"encryption"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// GatewayConfig identifies this bridge instance.
type GatewayConfig struct {
	// ID is the stable gateway identifier used to namespace MQTT topics
	// and discovery unique IDs. Lowercase slug, no separators.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// RadioConfig contains wire modulation defaults for the LoRa receiver
// collaborator. These must match the sensor fleet.
type RadioConfig struct {
	// Listen is the UDP address the frame receiver listens on.
	// The radio daemon forwards raw frames here.
	Listen string `yaml:"listen"`

	FrequencyMHz    float64 `yaml:"frequency_mhz"`
	SpreadingFactor int     `yaml:"spreading_factor"`
	BandwidthHz     int     `yaml:"bandwidth_hz"`
	CodingRate      int     `yaml:"coding_rate"`
	PreambleLength  int     `yaml:"preamble_length"`
	SyncWord        int     `yaml:"sync_word"`

	// SharedSecret is the gateway key every telemetry record must carry
	// in its "k" field.
	SharedSecret string `yaml:"shared_secret"`
}

// EncryptionConfig selects the symmetric transform applied to received frames.
type EncryptionConfig struct {
	// Mode is "none", "xor" or "aes".
	Mode string `yaml:"mode"`

	// Key is the hex-encoded symmetric key (1-16 bytes).
	Key string `yaml:"key"`
}

// MQTTConfig contains MQTT sink settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// DiscoveryPrefix is the Home Assistant discovery topic prefix.
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains optional telemetry history settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains management HTTP API settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	Auth     APIAuthConfig    `yaml:"auth"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// APIAuthConfig contains HTTP Basic auth settings.
// The password is stored as a SHA-256 hex digest, never in clear.
type APIAuthConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Username       string `yaml:"username"`
	PasswordSHA256 string `yaml:"password_sha256"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LORABRIDGE_SECTION_KEY
// For example: LORABRIDGE_DATABASE_PATH, LORABRIDGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// Radio defaults mirror what the gateway shipped with before any settings
// were saved: EU868, SF8/125kHz, XOR framing with a short demo key.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			ID:   "lorabridge",
			Name: "LoRa Bridge",
		},
		Database: DatabaseConfig{
			Path:        "./data/lorabridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Radio: RadioConfig{
			Listen:          "127.0.0.1:9898",
			FrequencyMHz:    868.0,
			SpreadingFactor: 8,
			BandwidthHz:     125000,
			CodingRate:      5,
			PreambleLength:  6,
			SyncWord:        0x12,
			SharedSecret:    "xy",
		},
		Encryption: EncryptionConfig{
			Mode: "xor",
			Key:  "4ba33f9c",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lorabridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			DiscoveryPrefix: "homeassistant",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LORABRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LORABRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("LORABRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LORABRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LORABRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("LORABRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("LORABRIDGE_SHARED_SECRET"); v != "" {
		cfg.Radio.SharedSecret = v
	}
	if v := os.Getenv("LORABRIDGE_ENCRYPTION_KEY"); v != "" {
		cfg.Encryption.Key = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Gateway.ID == "" {
		errs = append(errs, "gateway.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	switch strings.ToLower(c.Encryption.Mode) {
	case "none", "xor", "aes":
	default:
		errs = append(errs, "encryption.mode must be none, xor or aes")
	}

	if c.Radio.SpreadingFactor < 6 || c.Radio.SpreadingFactor > 12 {
		errs = append(errs, "radio.spreading_factor must be between 6 and 12")
	}
	if c.Radio.CodingRate < 5 || c.Radio.CodingRate > 8 {
		errs = append(errs, "radio.coding_rate must be between 5 and 8")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Auth.Enabled && c.API.Auth.Username == "" {
		errs = append(errs, "api.auth.username is required when auth is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
