// Gray Twin Core - Submodel Repository
//
// This is the main entry point for the Gray Twin Core application.
// It serves Asset Administration Shell submodels over HTTP, storing them in
// one of several document backends and announcing every change over MQTT
// and WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-twin-core/migrations"

	"github.com/nerrad567/gray-twin-core/internal/api"
	"github.com/nerrad567/gray-twin-core/internal/eventing"
	"github.com/nerrad567/gray-twin-core/internal/filerepo"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/database"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-twin-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-twin-core/internal/shell"
	"github.com/nerrad567/gray-twin-core/internal/submodel"
	"github.com/nerrad567/gray-twin-core/internal/submodel/memstore"
	"github.com/nerrad567/gray-twin-core/internal/submodel/mongostore"
	"github.com/nerrad567/gray-twin-core/internal/submodel/sqlstore"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
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

// cleanup collects shutdown steps and runs them in reverse order.
type cleanup []func()

func (c *cleanup) add(f func()) { *c = append(*c, f) }

func (c cleanup) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
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
	log := logging.Default()
	log.Info("starting Gray Twin Core",
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

	var shutdown cleanup
	defer shutdown.run()

	checks := make(map[string]api.HealthChecker)

	// The SQLite database always holds shells; it also holds submodels
	// when the sqlite backend is selected.
	db, err := openSQLite(ctx, cfg)
	if err != nil {
		return err
	}
	shutdown.add(func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	})
	checks["database"] = db
	log.Info("database connected", "path", cfg.Database.Path)

	backend, err := openBackend(ctx, cfg, db, &shutdown, checks, log)
	if err != nil {
		return err
	}
	log.Info("submodel backend ready", "type", cfg.Backend.Type)

	files, err := openFiles(ctx, cfg, checks)
	if err != nil {
		return err
	}
	log.Info("file repository ready", "type", cfg.Files.Type)

	repo := submodel.NewRepository(backend, files, cfg.Backend.MaxRetries)
	repo.SetLogger(log)

	var history api.HistoryReader
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB, cfg.Repository.ID)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		shutdown.add(func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		})
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		repo.SetValueRecorder(influxClient)
		history = influxClient
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	notifier := eventing.NewNotifier(repo, cfg.Repository.ID, eventing.NewHubSink(hub))
	notifier.SetLogger(log)

	var eventStats api.EventStatsProvider
	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT, cfg.Repository.ID)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		shutdown.add(func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		})
		mqttClient.SetLogger(log)
		notifier.AddSink(eventing.NewMQTTSink(mqttClient, mqttClient.QoS()))
		checks["mqtt"] = mqttClient
		eventStats = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
			"topics", mqttClient.Topics().AllEvents(),
		)
	} else {
		log.Info("MQTT disabled, events go to WebSocket only")
	}

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log,
		Submodels: notifier,
		Shells:    shell.NewSQLiteRepository(db),
		Hub:       hub,
		Checks:    checks,
		Stats:     db,
		Events:    eventStats,
		History:   history,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	shutdown.add(func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	})

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"repository", cfg.Repository.ID,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYTWIN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYTWIN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openSQLite opens and migrates the SQLite database.
func openSQLite(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// openBackend builds the submodel document backend selected by backend.type.
//
// Parameters:
//   - ctx: Context for connection setup
//   - cfg: Application configuration
//   - db: The SQLite database, reused by the sqlite backend
//   - shutdown: Receives close steps for connections opened here
//   - checks: Receives health checkers for connections opened here
//   - log: Logger instance
//
// Returns:
//   - submodel.Backend: The selected backend
//   - error: If the backend cannot be reached
func openBackend(ctx context.Context, cfg *config.Config, db *database.DB, shutdown *cleanup, checks map[string]api.HealthChecker, log *logging.Logger) (submodel.Backend, error) {
	switch cfg.Backend.Type {
	case config.BackendMemory:
		return memstore.New(), nil

	case config.BackendSQLite:
		return sqlstore.New(db), nil

	case config.BackendPostgres:
		pg, err := database.OpenPostgres(database.PostgresConfig{
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		shutdown.add(func() {
			log.Info("closing postgres")
			if closeErr := pg.Close(); closeErr != nil {
				log.Error("error closing postgres", "error", closeErr)
			}
		})
		if err := pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("running postgres migrations: %w", err)
		}
		checks["postgres"] = pg
		return sqlstore.New(pg), nil

	case config.BackendMongoDB:
		mb, err := mongostore.Connect(ctx, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		shutdown.add(func() {
			log.Info("disconnecting from mongodb")
			if closeErr := mb.Close(context.Background()); closeErr != nil {
				log.Error("error closing mongodb", "error", closeErr)
			}
		})
		checks["mongodb"] = mb
		return mb, nil
	}
	return nil, fmt.Errorf("unknown backend type %q", cfg.Backend.Type)
}

// openFiles builds the attachment store selected by files.type.
func openFiles(ctx context.Context, cfg *config.Config, checks map[string]api.HealthChecker) (filerepo.Repository, error) {
	switch cfg.Files.Type {
	case config.FilesMemory:
		return filerepo.NewMemory(), nil

	case config.FilesFilesystem:
		fs, err := filerepo.NewFilesystem(cfg.Files.Path)
		if err != nil {
			return nil, fmt.Errorf("opening file repository: %w", err)
		}
		return fs, nil

	case config.FilesS3:
		s3, err := filerepo.NewS3(cfg.Files.S3)
		if err != nil {
			return nil, fmt.Errorf("creating s3 client: %w", err)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensuring s3 bucket: %w", err)
		}
		checks["s3"] = s3
		return s3, nil
	}
	return nil, fmt.Errorf("unknown files type %q", cfg.Files.Type)
}

// healthCheck verifies every registered connection is healthy.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
