// HomeLink Core - Device Communication Gateway
//
// This is the main entry point for the HomeLink Core application: an
// MQTT gateway and reconciliation engine for smart-home devices. It
// keeps a SQLite device store converged with reality by pairing
// optimistic writes with confirmed device reports.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/homelink-core/migrations"

	"github.com/nerrad567/homelink-core/internal/device"
	"github.com/nerrad567/homelink-core/internal/gateway"
	"github.com/nerrad567/homelink-core/internal/infrastructure/config"
	"github.com/nerrad567/homelink-core/internal/infrastructure/database"
	"github.com/nerrad567/homelink-core/internal/infrastructure/history"
	"github.com/nerrad567/homelink-core/internal/infrastructure/logging"
	"github.com/nerrad567/homelink-core/internal/reconcile"
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
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
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
	log.Info("starting HomeLink Core",
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
	log.Info("configuration loaded", "path", configPath, "home_id", cfg.Home.ID)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
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

	// Initialise device registry
	deviceRepo := device.NewSQLiteRepository(db.DB)
	deviceRegistry := device.NewRegistry(deviceRepo)
	deviceRegistry.SetLogger(log)

	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.DeviceCount())

	// Connect the device gateway. A failed initial connect is not
	// fatal: the gateway keeps retrying in the background and the
	// reconciliation engine converges once events flow.
	gw := gateway.New(cfg.MQTT, cfg.Gateway.EventBuffer)
	gw.SetLogger(log)
	defer func() {
		log.Info("closing gateway")
		if closeErr := gw.Close(); closeErr != nil {
			log.Error("error closing gateway", "error", closeErr)
		}
	}()

	if connectErr := gw.Connect(); connectErr != nil {
		log.Warn("initial broker connection failed, retrying in background",
			"error", connectErr,
		)
	} else {
		log.Info("gateway connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	// Connect the history recorder (optional)
	recorder, err := connectHistory(cfg, log)
	if err != nil {
		return err
	}
	if recorder != nil {
		defer func() {
			log.Info("closing history recorder")
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing history recorder", "error", closeErr)
			}
		}()
	}

	// Start the reconciliation engine
	engine := reconcile.New(deviceRegistry, gw, cfg.Home.ID)
	engine.SetLogger(log)
	if recorder != nil {
		engine.SetRecorder(recorder)
	}
	if startErr := engine.Start(ctx); startErr != nil {
		return fmt.Errorf("starting reconciliation: %w", startErr)
	}
	defer func() {
		log.Info("stopping reconciliation engine")
		engine.Stop()
	}()

	// Verify connections. The gateway and recorder are allowed to be
	// down at this point; only the database is load-bearing.
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if err := gw.HealthCheck(ctx); err != nil {
		log.Warn("gateway not yet healthy", "error", err)
	}
	if recorder != nil {
		if err := recorder.HealthCheck(ctx); err != nil {
			log.Warn("history recorder not healthy", "error", err)
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Reconciliation engine
	// 2. History recorder (if enabled)
	// 3. Gateway
	// 4. Database

	log.Info("HomeLink Core stopped")
	return nil
}

// connectHistory connects the optional InfluxDB history recorder.
// Returns nil without error when recording is disabled.
func connectHistory(cfg *config.Config, log *logging.Logger) (*history.Recorder, error) {
	recorder, err := history.Connect(cfg.InfluxDB)
	if errors.Is(err, history.ErrDisabled) {
		log.Info("history recording disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	recorder.SetOnError(func(writeErr error) {
		log.Error("history write error", "error", writeErr)
	})

	log.Info("history recorder connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return recorder, nil
}

// getConfigPath returns the configuration file path.
// Uses HOMELINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMELINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
