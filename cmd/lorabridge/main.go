// LoRa Bridge Core - sensor mesh to smart home gateway
//
// This is the main entry point for the bridge. It receives LoRa telemetry
// frames from a radio forwarder, maintains the paired device table, projects
// devices as accessories, and optionally mirrors them to an MQTT broker in
// Home Assistant's discovery dialect.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lorabridge/bridge-core/migrations"

	"github.com/lorabridge/bridge-core/internal/accessory"
	"github.com/lorabridge/bridge-core/internal/activity"
	"github.com/lorabridge/bridge-core/internal/api"
	"github.com/lorabridge/bridge-core/internal/device"
	"github.com/lorabridge/bridge-core/internal/gateway"
	"github.com/lorabridge/bridge-core/internal/infrastructure/config"
	"github.com/lorabridge/bridge-core/internal/infrastructure/database"
	"github.com/lorabridge/bridge-core/internal/infrastructure/influxdb"
	"github.com/lorabridge/bridge-core/internal/infrastructure/kv"
	"github.com/lorabridge/bridge-core/internal/infrastructure/logging"
	"github.com/lorabridge/bridge-core/internal/infrastructure/mqtt"
	"github.com/lorabridge/bridge-core/internal/settings"
	"github.com/lorabridge/bridge-core/internal/sink"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting LoRa Bridge Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and run migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Durable store namespaces
	deviceKV, err := kv.New(db, "device")
	if err != nil {
		return fmt.Errorf("opening device store: %w", err)
	}
	settingsKV, err := kv.New(db, "settings")
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
	}

	// Runtime settings: config-file defaults overlaid with persisted values
	settingsStore := settings.NewStore(settingsKV, settings.FromConfig(cfg))
	current, err := settingsStore.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	log.Info("settings loaded",
		"frequency_mhz", current.FrequencyMHz,
		"spreading_factor", current.SpreadingFactor,
		"encryption_mode", current.EncryptionMode,
		"mqtt_enabled", current.MQTTEnabled,
	)

	// Restore the device table
	registry := device.NewRegistry()
	deviceStore := device.NewStore(deviceKV)
	restored, err := deviceStore.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading device table: %w", err)
	}
	registry.Restore(restored)
	log.Info("device table restored", "devices", registry.Count())

	// Accessory binding. The loopback binding stands in until an external
	// controller integration is configured; it still exercises the full
	// identifier lifecycle.
	manager := accessory.NewManager(accessory.NewLoopback(), log)
	for _, d := range registry.Devices() {
		if bindErr := manager.Bind(d); bindErr != nil {
			log.Error("binding restored device failed", "device_id", d.ID, "error", bindErr)
		}
	}

	// MQTT sink (optional, controlled by runtime settings)
	var publisher *sink.Publisher
	var mqttClient *mqtt.Client
	if current.MQTTEnabled {
		topics := mqtt.Topics{
			DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
			GatewayID:       cfg.Gateway.ID,
		}

		mqttClient, err = mqtt.Connect(current.ApplyMQTT(cfg.MQTT), topics)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", current.MQTTHost, current.MQTTPort),
			"discovery_prefix", cfg.MQTT.DiscoveryPrefix,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		publisher = sink.NewPublisher(mqttClient, byte(cfg.MQTT.QoS))

		// Announce restored devices so a fresh broker learns them without
		// waiting for traffic.
		for _, d := range registry.Devices() {
			if pubErr := publisher.PublishDiscovery(d); pubErr != nil {
				log.Warn("discovery publish for restored device failed",
					"device_id", d.ID, "error", pubErr)
			}
		}
	} else {
		log.Info("MQTT sink disabled")
	}

	// InfluxDB history sink (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB history disabled")
	}

	// Frame source: UDP listener fed by the radio forwarder
	source, err := gateway.ListenUDP(cfg.Radio.Listen, log)
	if err != nil {
		return fmt.Errorf("starting frame listener: %w", err)
	}
	go func() {
		if runErr := source.Run(ctx); runErr != nil {
			log.Error("frame listener stopped", "error", runErr)
		}
	}()

	// Gateway loop
	activityLog := activity.NewLog()
	gw, err := gateway.New(gateway.Deps{
		Registry: registry,
		Devices:  deviceStore,
		Settings: settingsStore,
		Current:  current,
		Fanout:   sink.NewFanout(manager, publisher, influxClient, log),
		Activity: activityLog,
		Frames:   source.Frames(),
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	// Home Assistant announces restarts on its birth topic; re-announce the
	// device table so a wiped entity registry relearns the bridge. The
	// subscription survives reconnects.
	if mqttClient != nil {
		birth := mqttClient.Topics().Birth()
		if subErr := mqttClient.Subscribe(birth, byte(cfg.MQTT.QoS), sink.RepublishOnBirth(gw, publisher, log)); subErr != nil {
			log.Warn("subscribing to home assistant birth topic failed",
				"topic", birth, "error", subErr)
		}
	}

	// Management API
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log,
		Gateway:  gw,
		Version:  version,
		Database: db,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, gateway loop running",
		"listen", source.Addr().String(),
	)

	// The gateway loop blocks until the shutdown signal cancels ctx.
	if err := gw.Run(ctx); err != nil {
		return fmt.Errorf("gateway loop: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("LoRa Bridge Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LORABRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LORABRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (nil if disabled)
//   - influxClient: InfluxDB client to check (nil if disabled)
//   - server: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
