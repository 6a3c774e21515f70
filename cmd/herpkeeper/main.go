// Herp Keeper Core - reptile and amphibian collection tracking backend.
//
// This is the main entry point for the Herp Keeper API server. It wires
// together the SQLite document store, the MQTT event bus, the optional S3
// image store and InfluxDB telemetry, and the HTTP/WebSocket API, then
// waits for a shutdown signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/herpkeeper/herpkeeper-core/migrations"

	"github.com/herpkeeper/herpkeeper-core/internal/animal"
	"github.com/herpkeeper/herpkeeper-core/internal/api"
	"github.com/herpkeeper/herpkeeper-core/internal/auth"
	"github.com/herpkeeper/herpkeeper-core/internal/image"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/config"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/database"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/influxdb"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/logging"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/mqtt"
	"github.com/herpkeeper/herpkeeper-core/internal/location"
	"github.com/herpkeeper/herpkeeper-core/internal/messaging"
	"github.com/herpkeeper/herpkeeper-core/internal/profile"
	"github.com/herpkeeper/herpkeeper-core/internal/species"
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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit // linear wiring of every subsystem
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Herp Keeper Core",
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

	// Image object store (optional)
	var imageStore *image.Store
	if cfg.S3.Enabled {
		imageStore, err = image.NewStore(ctx, cfg.S3)
		if err != nil {
			return fmt.Errorf("creating image store: %w", err)
		}
		created, bucketErr := imageStore.EnsureBucket(ctx)
		if bucketErr != nil {
			return fmt.Errorf("checking image bucket: %w", bucketErr)
		}
		log.Info("image store ready", "bucket", cfg.S3.Bucket, "created", created)
	} else {
		log.Info("image store disabled")
	}

	// Connect to InfluxDB (optional)
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
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to the MQTT broker: the subscriber side of the event bus
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

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Publisher holds its own lazily-dialled connection so a publish storm
	// cannot stall the subscriber's inbound stream.
	publisher := messaging.NewPublisher(cfg.MQTT, log)
	defer func() {
		if closeErr := publisher.Disconnect(); closeErr != nil {
			log.Error("error disconnecting publisher", "error", closeErr)
		}
	}()
	notifier := messaging.NewNotifier(publisher, log)

	// WebSocket hub: the local delivery target for bus facts
	hub := api.NewHub(cfg.WebSocket, cfg.Security.JWT.Secret, log)

	subscriber := messaging.NewSubscriber(mqttClient, cfg.MQTT, hub, log)
	if err := subscriber.Start(); err != nil {
		return fmt.Errorf("starting message subscriber: %w", err)
	}
	defer func() {
		log.Info("stopping message subscriber")
		if stopErr := subscriber.Stop(); stopErr != nil {
			log.Error("error stopping subscriber", "error", stopErr)
		}
	}()

	// API server
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Profiles:   profile.NewSQLiteRepository(db.DB),
		Tokens:     auth.NewTokenRepository(db.DB),
		Locations:  location.NewSQLiteRepository(db.DB),
		Species:    species.NewSQLiteRepository(db.DB),
		Animals:    animal.NewSQLiteRepository(db.DB),
		Images:     image.NewSQLiteRepository(db.DB),
		ImageStore: imageStore,
		Influx:     influxClient,
		Notifier:   notifier,
		Hub:        hub,
		Version:    version,
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
	log.Info("API server started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server (hub included)
	// 2. Message subscriber
	// 3. Publisher
	// 4. MQTT
	// 5. InfluxDB (if enabled)
	// 6. Database

	log.Info("Herp Keeper Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HERPKEEPER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HERPKEEPER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
