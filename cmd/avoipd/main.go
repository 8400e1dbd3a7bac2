// AV-over-IP Core - Data Refresh Coordinator
//
// This is the main entry point for the AV-over-IP core daemon. The core
// maintains a fresh in-memory snapshot of a video-over-IP matrix fleet
// (encoders, decoders, routing assignments) and serves it to entity
// collaborators over REST, WebSocket, and MQTT, while keeping controller
// traffic bounded:
//   - Reads never block on the controller
//   - Refreshes are sectioned, deduplicated, and debounced
//   - Commands refresh only what they can have changed
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/avoip-core/migrations"

	"github.com/nerrad567/avoip-core/internal/api"
	"github.com/nerrad567/avoip-core/internal/bridges/nhd"
	"github.com/nerrad567/avoip-core/internal/coordinator"
	"github.com/nerrad567/avoip-core/internal/infrastructure/config"
	"github.com/nerrad567/avoip-core/internal/infrastructure/database"
	"github.com/nerrad567/avoip-core/internal/infrastructure/logging"
	"github.com/nerrad567/avoip-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/avoip-core/internal/snapshot"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
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
	log.Info("starting AV-over-IP core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
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

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
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
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Create the NetworkHD bridge client over MQTT
	nhdClient, err := nhd.NewClient(nhd.Options{
		BridgeID:       cfg.Bridge.ID,
		Broker:         &brokerAdapter{client: mqttClient, log: log},
		RequestTimeout: cfg.GetBridgeRequestTimeout(),
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge client: %w", err)
	}
	if startErr := nhdClient.Start(); startErr != nil {
		return fmt.Errorf("starting bridge client: %w", startErr)
	}
	log.Info("bridge client started", "bridge_id", cfg.Bridge.ID)

	// Snapshot store and persistence
	store := snapshot.NewStore()
	repo := snapshot.NewSQLiteRepository(db.DB)

	// Coordinator: refresh engine, notification dispatcher, poll scheduler
	coord := coordinator.New(nhdClient, store, repo, coordinator.Config{
		PollInterval:   cfg.GetPollInterval(),
		DescriptorTTL:  cfg.GetDescriptorTTL(),
		DebounceWindow: cfg.GetDebounceWindow(),
	})
	coord.SetLogger(log)

	if startErr := coord.Start(ctx); startErr != nil {
		return fmt.Errorf("starting coordinator: %w", startErr)
	}
	defer func() {
		log.Info("stopping coordinator")
		coord.Close()
	}()

	// Announce section changes on the bus so MQTT-side collaborators can
	// follow snapshot versions without polling the REST API.
	sectionPub := coord.Subscribe(publishSectionChange(mqttClient, byte(cfg.MQTT.QoS), log))
	defer coord.Unsubscribe(sectionPub)

	// HTTP API and WebSocket server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Coordinator: coord,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Coordinator (waits for pending persistence)
	// 3. MQTT
	// 4. Database

	log.Info("AV-over-IP core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AVOIP_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AVOIP_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	return nil
}

// publishSectionChange returns a snapshot change handler that announces the
// new section version on avoip/core/sections/{section}. Retained so late
// subscribers see the latest version immediately.
func publishSectionChange(client *mqtt.Client, qos byte, log *logging.Logger) snapshot.ChangeHandler {
	return func(sec snapshot.Section, version uint64) {
		payload, err := json.Marshal(map[string]any{
			"section":   string(sec),
			"version":   version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return
		}

		topic := mqtt.Topics{}.CoreSectionChanged(string(sec))
		if err := client.Publish(topic, payload, qos, true); err != nil {
			log.Warn("section change publish failed",
				"section", string(sec), "error", err)
		}
	}
}

// brokerAdapter adapts the infrastructure MQTT client to the bridge client's
// Broker interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic string, payload []byte) error
// - Bridge client expects: func(topic string, payload []byte)
type brokerAdapter struct {
	client *mqtt.Client
	log    *logging.Logger
}

// Publish implements nhd.Broker.
func (a *brokerAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements nhd.Broker.
func (a *brokerAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler to return nil error (bridge handlers don't return errors)
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements nhd.Broker.
func (a *brokerAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
