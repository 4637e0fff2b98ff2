// Presence Sync Daemon
//
// presenced polls a MikroTik Presence backend, materialises its devices
// and capabilities as switch and select entities, and mirrors them onto
// an MQTT broker. It also serves a small REST API for diagnostics and
// records capability state transitions in SQLite.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/n1ckjansens/HA-Mikrotik/migrations"

	"github.com/n1ckjansens/HA-Mikrotik/internal/api"
	"github.com/n1ckjansens/HA-Mikrotik/internal/backend"
	"github.com/n1ckjansens/HA-Mikrotik/internal/bridge"
	"github.com/n1ckjansens/HA-Mikrotik/internal/coordinator"
	"github.com/n1ckjansens/HA-Mikrotik/internal/discovery"
	"github.com/n1ckjansens/HA-Mikrotik/internal/entity"
	"github.com/n1ckjansens/HA-Mikrotik/internal/history"
	"github.com/n1ckjansens/HA-Mikrotik/internal/infrastructure/config"
	"github.com/n1ckjansens/HA-Mikrotik/internal/infrastructure/database"
	"github.com/n1ckjansens/HA-Mikrotik/internal/infrastructure/influxdb"
	"github.com/n1ckjansens/HA-Mikrotik/internal/infrastructure/logging"
	"github.com/n1ckjansens/HA-Mikrotik/internal/infrastructure/mqtt"
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

// historyPruneInterval is how often expired transitions are swept.
const historyPruneInterval = 12 * time.Hour

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
	log.Info("starting presence daemon",
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

	// Resolve the backend base URL, probing candidates when none is set
	baseURL, err := resolveBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("resolving backend: %w", err)
	}
	log.Info("backend resolved", "base_url", baseURL)

	client := backend.NewClientWithTimeout(baseURL, cfg.Backend.APIKey, cfg.GetRequestTimeout())

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

	historyRepo := history.NewSQLiteRepository(db.DB)
	if cfg.Database.HistoryRetentionDays > 0 {
		go pruneHistory(ctx, historyRepo, cfg.Database.HistoryRetentionDays, log)
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

	// Polling coordinators
	devices := coordinator.NewDevices(client, cfg.GetPollInterval(), log)
	global := coordinator.NewGlobal(client, cfg.GetPollInterval(), log)
	if influxClient != nil {
		observer := func(stats coordinator.TickStats) {
			influxClient.WriteTickMetric(stats.Coordinator, stats.Success, stats.Duration)
		}
		devices.SetTickObserver(observer)
		global.SetTickObserver(observer)
	}

	// A failed first refresh is not fatal: the coordinators keep retrying
	// on their regular ticks and entities surface as unavailable.
	if refreshErr := devices.FirstRefresh(ctx); refreshErr != nil {
		log.Warn("initial device poll failed", "error", refreshErr)
	}
	if refreshErr := global.FirstRefresh(ctx); refreshErr != nil {
		log.Warn("initial global poll failed", "error", refreshErr)
	}

	devices.Start(ctx)
	defer devices.Stop()
	global.Start(ctx)
	defer global.Stop()

	registry := entity.NewRegistry(client, devices, global, log)

	// Connect to MQTT broker and start the bridge (optional)
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

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		var telemetry bridge.Telemetry
		if influxClient != nil {
			telemetry = influxClient
		}

		// The bridge owns the registry lifecycle: its Start hooks the
		// update callback and starts registry syncing.
		mqttBridge, bridgeErr := bridge.New(bridge.Options{
			MQTTClient: mqttClient,
			Registry:   registry,
			Devices:    devices,
			Recorder:   historyRepo,
			Telemetry:  telemetry,
			QoS:        byte(cfg.MQTT.QoS),
			Logger:     log,
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", bridgeErr)
		}
		if startErr := mqttBridge.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			mqttBridge.Stop()
		}()
		log.Info("MQTT bridge started")
	} else {
		log.Info("MQTT bridge disabled")
		registry.Start()
		defer registry.Stop()
	}

	// Start the REST API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Registry: registry,
			Devices:  devices,
			Global:   global,
			History:  historyRepo,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, MQTT bridge, MQTT client, coordinators,
	// InfluxDB (if enabled), database.

	log.Info("presence daemon stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PRESENCE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PRESENCE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// resolveBackend returns the configured backend base URL, or probes
// discovery candidates when none is configured. The supervisor token, if
// present in the environment, unlocks add-on directory hints.
func resolveBackend(ctx context.Context, cfg *config.Config, log *logging.Logger) (string, error) {
	if cfg.Backend.BaseURL != "" {
		return discovery.NormalizeBaseURL(cfg.Backend.BaseURL), nil
	}

	candidates := cfg.Discovery.Candidates
	if len(candidates) == 0 {
		candidates = discovery.DefaultCandidates()
	}

	supervisor := discovery.NewSupervisorClient(
		cfg.Discovery.SupervisorURL,
		os.Getenv("SUPERVISOR_TOKEN"),
		cfg.Discovery.AddonSlug,
	)

	resolver := discovery.NewResolver(cfg.Backend.APIKey, candidates, supervisor, log)
	return resolver.Resolve(ctx)
}

// pruneHistory periodically deletes state transitions older than the
// configured retention window. Runs until the context is cancelled.
func pruneHistory(ctx context.Context, repo history.Repository, retentionDays int, log *logging.Logger) {
	retention := time.Duration(retentionDays) * 24 * time.Hour

	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := repo.Prune(ctx, retention)
			if err != nil {
				log.Error("history prune failed", "error", err)
				continue
			}
			if deleted > 0 {
				log.Info("history pruned", "deleted", deleted, "retention_days", retentionDays)
			}
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy. The
// MQTT and InfluxDB clients may be nil if those subsystems are disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
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

	return nil
}
