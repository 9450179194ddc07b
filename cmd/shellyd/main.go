// Shelly monitoring backend.
//
// shellyd is the main entry point for the home monitoring service. It
// serves the dashboard REST API and WebSocket event stream, talks to the
// external Shelly adapter for device discovery and relay control, and
// runs the background reconciliation loop that keeps clients in sync
// with the physical devices.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/damianarielmauro/Shelly-App/migrations"

	"github.com/damianarielmauro/Shelly-App/internal/api"
	"github.com/damianarielmauro/Shelly-App/internal/auth"
	"github.com/damianarielmauro/Shelly-App/internal/device"
	"github.com/damianarielmauro/Shelly-App/internal/events"
	"github.com/damianarielmauro/Shelly-App/internal/hierarchy"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/config"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/database"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/influxdb"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/logging"
	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/mqtt"
	"github.com/damianarielmauro/Shelly-App/internal/shelly"
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
	// Load a local .env file if present. Secrets like SHELLY_JWT_SECRET
	// live there during development; real environment variables win.
	_ = godotenv.Load() //nolint:errcheck // missing .env is the normal case

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting shellyd",
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

	// Repositories
	userRepo := auth.NewUserRepository(db.DB)
	roomAccessRepo := auth.NewRoomAccessRepository(db.DB)
	hierarchyRepo := hierarchy.NewSQLiteRepository(db.DB)
	deviceRepo := device.NewSQLiteRepository(db.DB)

	// Create the initial admin account on an empty database. The
	// generated password is logged and must be changed on first login.
	if _, seedErr := auth.SeedAdmin(ctx, userRepo, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	// Event bus distributes device updates to the WebSocket hub and any
	// other interested subscribers.
	bus := events.NewBus(log)

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

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
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
	} else {
		log.Info("MQTT disabled")
	}

	// Adapter client and reconciliation monitor. The monitor polls the
	// adapter and publishes deviceUpdate events for every change.
	adapter := shelly.NewClient(cfg, log)
	monitor := shelly.NewMonitor(adapter, bus, cfg.PollInterval(), influxClient, mqttClient, log)
	go monitor.Run(ctx)
	log.Info("reconciliation monitor launched",
		"adapter_url", cfg.Adapter.URL,
		"interval", cfg.PollInterval().String(),
	)

	// With a broker connected, MQTT integrations can drive relays by
	// publishing to shelly/cmd/<ip>.
	if mqttClient != nil {
		relay := shelly.NewCommandRelay(adapter, monitor, mqttClient, log)
		if relayErr := relay.Start(ctx); relayErr != nil {
			return fmt.Errorf("starting MQTT command relay: %w", relayErr)
		}
		defer func() {
			if closeErr := relay.Close(); closeErr != nil {
				log.Warn("error stopping MQTT command relay", "error", closeErr)
			}
		}()
	}

	// Start the API server
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Users:      userRepo,
		RoomAccess: roomAccessRepo,
		Hierarchy:  hierarchyRepo,
		Devices:    deviceRepo,
		Adapter:    adapter,
		Monitor:    monitor,
		Bus:        bus,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, server, influxClient, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. MQTT (if enabled)
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("shellyd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SHELLY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SHELLY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The influx and mqtt clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, influxClient *influxdb.Client, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	return nil
}
