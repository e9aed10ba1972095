// Gray Logic Assistant Link
//
// This is the entry point for the voice-assistant bridge. It links a Gray
// Logic site to a smart-home assistant platform:
//   - OAuth account linking backed by local login accounts
//   - Fulfillment of SYNC, QUERY, EXECUTE and local-execution intents
//   - Debounced sync requests and state reports to the home graph
//
// Devices are announced by Gray Logic Core over MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-assistant/migrations"

	"github.com/nerrad567/gray-logic-assistant/internal/api"
	"github.com/nerrad567/gray-logic-assistant/internal/audit"
	"github.com/nerrad567/gray-logic-assistant/internal/auth"
	"github.com/nerrad567/gray-logic-assistant/internal/device"
	"github.com/nerrad567/gray-logic-assistant/internal/fulfillment"
	"github.com/nerrad567/gray-logic-assistant/internal/homegraph"
	"github.com/nerrad567/gray-logic-assistant/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-assistant/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-assistant/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-assistant/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-assistant/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-assistant/internal/statereport"
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

// tokenSweepInterval is how often expired codes and access tokens are dropped.
const tokenSweepInterval = 5 * time.Minute

// Audit entries older than auditRetention are pruned once a day.
const (
	auditRetention     = 90 * 24 * time.Hour
	auditPruneInterval = 24 * time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Deferred Close calls unwind in reverse start order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Assistant Link",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	// Login accounts
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
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}

	users := auth.NewUserRepository(db.DB)
	if _, seedErr := auth.SeedLoginUser(ctx, users, cfg.Assistant.LoginUser, cfg.Assistant.LoginPassword, log); seedErr != nil {
		return fmt.Errorf("seeding login account: %w", seedErr)
	}
	trail := audit.NewSQLiteRepository(db.DB)
	go pruneAudit(ctx, trail, log)

	// InfluxDB metrics (optional)
	influxClient, err := connectInfluxDB(cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := influxClient.Close(); closeErr != nil {
			log.Error("error closing InfluxDB", "error", closeErr)
		}
	}()
	var (
		intentMetrics fulfillment.Metrics
		reportMetrics statereport.Metrics
		tokenEvents   api.TokenEvents
	)
	if influxClient != nil {
		intentMetrics, reportMetrics, tokenEvents = influxClient, influxClient, influxClient
	}

	// Token store
	authSvc := auth.NewService(auth.NewFileStore(cfg.Assistant.TokenStorePath, log), auth.Options{
		ClientID:       cfg.Assistant.ClientID,
		ClientSecret:   cfg.Assistant.ClientSecret,
		AccessTokenTTL: cfg.Assistant.AccessTokenLifetime(),
		Redirects: auth.RedirectPolicy{
			ProjectID:     cfg.Assistant.ProjectID,
			Templates:     cfg.Assistant.RedirectTemplates,
			VerifySelfURL: cfg.Assistant.VerifySelfURL,
		},
		Logger: log,
	})
	go authSvc.Run(ctx, tokenSweepInterval)

	registry := device.NewRegistry()
	registry.SetLogger(log)

	// Home graph reporting
	graph, err := connectHomeGraph(ctx, cfg.Assistant, log)
	if err != nil {
		return err
	}
	reporter := statereport.New(statereport.Config{
		Graph:    graph,
		Accounts: authSvc,
		States:   registry,
		Metrics:  reportMetrics,
		Debounce: cfg.Assistant.SyncDebounce(),
		Interval: cfg.Assistant.ReportInterval(),
		Logger:   log,
	})
	reporter.Start(ctx)
	defer func() {
		log.Info("stopping state reporter")
		reporter.Stop()
	}()

	authSvc.SetOnLocalRotate(reporter.ScheduleRequestSync)
	registry.SetOnDevicesChanged(reporter.ScheduleRequestSync)
	registry.SetOnStateChanged(reporter.ReportStateAsync)

	// Device transport
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = startDeviceBridge(cfg.MQTT, registry, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Warn("MQTT disabled, no devices will be announced")
	}

	dispatcher := fulfillment.New(fulfillment.Config{
		Auth:            authSvc,
		Registry:        registry,
		Reporter:        reporter,
		Metrics:         intentMetrics,
		MinAgentVersion: cfg.Assistant.MinLocalAgentVersion,
		Logger:          log,
	})

	deps := api.Deps{
		Config:      cfg.API,
		Local:       cfg.LocalAPI,
		Assistant:   cfg.Assistant,
		Logger:      log,
		Auth:        authSvc,
		Users:       users,
		Fulfillment: dispatcher,
		Registry:    registry,
		Events:      tokenEvents,
		Audit:       trail,
		Version:     version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	server, err := api.New(deps)
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

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectInfluxDB returns nil without error when InfluxDB is disabled.
func connectInfluxDB(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return client, nil
}

// connectHomeGraph returns a nil client when no service account is
// configured; the reporter then skips every outbound call.
func connectHomeGraph(ctx context.Context, cfg config.AssistantConfig, log *logging.Logger) (statereport.HomeGraph, error) {
	if cfg.ServiceAccountFile == "" {
		log.Warn("no service account configured, state reporting disabled")
		return nil, nil
	}
	client, err := homegraph.NewFromServiceAccount(ctx, cfg.HomeGraphURL, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("loading service account: %w", err)
	}
	log.Info("home graph client ready", "url", cfg.HomeGraphURL)
	return client, nil
}

// startDeviceBridge connects to the broker and subscribes the device bridge.
func startDeviceBridge(cfg config.MQTTConfig, registry *device.Registry, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)

	bridge := device.NewBridge(client, registry, client.DefaultQoS(), log)
	if err := bridge.Start(); err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("starting device bridge: %w", err)
	}
	return client, nil
}

// pruneAudit trims the audit trail until ctx is cancelled.
func pruneAudit(ctx context.Context, repo audit.Repository, log *logging.Logger) {
	ticker := time.NewTicker(auditPruneInterval)
	defer ticker.Stop()

	for {
		n, err := repo.Prune(ctx, time.Now().Add(-auditRetention))
		if err != nil && ctx.Err() == nil {
			log.Warn("pruning audit trail", "error", err)
		} else if n > 0 {
			log.Info("pruned audit trail", "entries", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
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
