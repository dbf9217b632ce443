// Gray Logic Catalog - Device Identity Resolution & Capability Normalization
//
// catalogd ingests device descriptors from external catalogs and the local
// corpus, and maintains a canonical, deduplicated device database:
//   - Stable identities from manufacturer/model fingerprints
//   - Normalised capabilities from vendor data point definitions
//   - Full provenance for every record and merge
//
// It is configured by YAML and GRAYLOGIC_CATALOG_* environment variables
// and takes no flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-catalog/internal/api"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/classify"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/extract"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/fetch"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/fusion"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/schema"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/source"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/update"
	"github.com/nerrad567/gray-logic-catalog/internal/device"
	"github.com/nerrad567/gray-logic-catalog/internal/history"
	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-catalog/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/catalog.yaml"

func main() {
	// Cancel on Ctrl+C or SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Catalog",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	cat, err := buildCatalog(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log.Component("mqtt"))
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
		cat.orchestrator.AddNotifier(update.NewMQTTNotifier(mqttClient))
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		cat.orchestrator.AddNotifier(update.NewMetricsNotifier(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Start the API before the first cycle so clients can watch it
	if cfg.API.Enabled {
		hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
		go hub.Run(ctx)
		cat.orchestrator.AddNotifier(hub)

		apiServer, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Logger:      log.Component("api"),
			Corpus:      cat.corpus,
			Schema:      cat.schema,
			Sources:     cat.registry,
			Classifier:  cat.classifier,
			Updater:     cat.orchestrator,
			Reports:     cat.reports,
			ExternalHub: hub,
			Version:     version,
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
		log.Info("API disabled")
	}

	report := cat.orchestrator.UpdateAll(ctx, update.Options{
		ForceUpdate:  cfg.Update.ForceUpdate,
		SourceFilter: cfg.Update.SourceFilter,
	})
	log.Info("initial update cycle complete",
		"report_id", report.ID,
		"total_devices", report.TotalDevices,
		"errors", len(report.Errors),
		"merged", report.Fusion.Merged,
	)

	if cfg.Update.AutoSchedule {
		armed := cat.orchestrator.ScheduleAutoUpdates(ctx)
		defer cat.orchestrator.CancelAll()
		log.Info("auto updates scheduled", "sources", armed)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Scheduled updates
	// 2. API server (waits for API-triggered cycles)
	// 3. InfluxDB, MQTT (if enabled)
	// 4. Database

	log.Info("Gray Logic Catalog stopped")
	return nil
}

// catalog groups the components one update cycle drives.
type catalog struct {
	registry     *source.Registry
	corpus       *device.Corpus
	schema       *schema.Database
	classifier   *classify.Classifier
	reports      *history.SQLiteRepository
	orchestrator *update.Orchestrator
}

// buildCatalog constructs the catalog pipeline on top of db.
//
// Parameters:
//   - ctx: Context for loading persisted state
//   - cfg: Application configuration
//   - db: Migrated database
//   - log: Logger instance
//
// Returns:
//   - *catalog: Wired components with report history attached
//   - error: If any component fails to initialise
func buildCatalog(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (*catalog, error) {
	registry, err := source.NewRegistry(
		source.ApplyConfig(source.DefaultSources(), cfg.Sources),
		source.WithStateStore(source.NewSQLiteStateStore(db.DB)),
	)
	if err != nil {
		return nil, fmt.Errorf("building source registry: %w", err)
	}
	registry.SetLogger(log.Component("sources"))
	if err := registry.Restore(ctx); err != nil {
		return nil, err
	}
	log.Info("source registry initialised", "sources", len(registry.IDs()))

	corpus := device.NewCorpus(device.NewSQLiteRepository(db.DB))
	corpus.SetLogger(log.Component("corpus"))
	if err := corpus.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	if cfg.Corpus.SeedFile != "" {
		if err := importSeed(ctx, corpus, cfg.Corpus.SeedFile, log); err != nil {
			return nil, err
		}
	}
	log.Info("corpus initialised", "devices", corpus.Count())

	fetcher := fetch.New(fetch.Config{
		Timeout:      cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		HostDelay:    cfg.Fetch.HostDelay,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	}, nil)
	fetcher.SetLogger(log.Component("fetch"))

	extractor := extract.New(extract.DefaultRuleSets(extract.DefaultPrefixes()))
	extractor.SetLogger(log.Component("extract"))

	fusionEngine, err := fusion.New(fusion.Options{MinSharedTokens: cfg.Fusion.MinSharedTokens})
	if err != nil {
		return nil, fmt.Errorf("building fusion engine: %w", err)
	}
	fusionEngine.SetLogger(log.Component("fusion"))

	schemaDB := schema.NewDefaultDatabase()
	if cfg.Update.SnapshotPath != "" {
		if err := restoreSchema(cfg.Update.SnapshotPath, fusionEngine, schemaDB, log); err != nil {
			return nil, err
		}
	}

	classifier := classify.Default()

	orch, err := update.New(update.Deps{
		Registry:   registry,
		Fetcher:    fetcher,
		Extractor:  extractor,
		Classifier: classifier,
		Fusion:     fusionEngine,
		Schema:     schemaDB,
		Corpus:     corpus,
	}, update.Config{
		Concurrency:  cfg.Update.Concurrency,
		SnapshotPath: cfg.Update.SnapshotPath,
	})
	if err != nil {
		return nil, fmt.Errorf("building orchestrator: %w", err)
	}
	orch.SetLogger(log.Component("update"))

	reports := history.NewSQLiteRepository(db.DB)
	orch.AddNotifier(reports)
	if keep := cfg.Update.HistoryKeep; keep > 0 {
		orch.AddNotifier(update.NotifierFunc(func(ctx context.Context, _ *update.Report) error {
			n, err := reports.Prune(ctx, keep)
			if n > 0 {
				log.Debug("pruned update reports", "removed", n)
			}
			return err
		}))
	}

	return &catalog{
		registry:     registry,
		corpus:       corpus,
		schema:       schemaDB,
		classifier:   classifier,
		reports:      reports,
		orchestrator: orch,
	}, nil
}

// importSeed upserts the curated local listing into the corpus.
func importSeed(ctx context.Context, corpus *device.Corpus, path string, log *logging.Logger) error {
	entries, err := device.LoadSeed(path)
	if err != nil {
		return fmt.Errorf("loading seed file: %w", err)
	}
	stats, err := corpus.Upsert(ctx, entries)
	if err != nil {
		return fmt.Errorf("importing seed file: %w", err)
	}
	log.Info("seed file imported", "path", path, "entries", len(entries), "stats", stats)
	return nil
}

// restoreSchema merges data points learned in earlier runs back into db.
// A missing snapshot is normal on first start.
func restoreSchema(path string, engine *fusion.Engine, db *schema.Database, log *logging.Logger) error {
	snap, err := update.LoadSnapshot(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	conflicts, err := engine.MergeDefinitions(db, snap.Definitions())
	if err != nil {
		return fmt.Errorf("restoring schema: %w", err)
	}
	log.Info("schema restored from snapshot",
		"path", path,
		"datapoints", db.Len(),
		"conflicts", conflicts,
	)
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CATALOG_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CATALOG_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
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
