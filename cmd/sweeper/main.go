// Command sweeper periodically deletes link records past their expiry time.
// Resolution already refuses expired links, so the sweep is pure cleanup and
// can lag behind real time without affecting correctness.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mfontes/shortlink/internal/config"
	"github.com/mfontes/shortlink/internal/infrastructure/db"
	"github.com/mfontes/shortlink/internal/infrastructure/logger"
	"github.com/mfontes/shortlink/internal/infrastructure/telemetry"
	"github.com/mfontes/shortlink/internal/shortener"
	mongoStorage "github.com/mfontes/shortlink/internal/storage/mongo"
	postgresStorage "github.com/mfontes/shortlink/internal/storage/postgres"
)

type sweeperConfig struct {
	appEnv     string
	appName    string
	appVersion string

	otelEnabled  bool
	otelEndpoint string

	storageBackend string
	mongoURI       string
	mongoDatabase  string
	postgresDSN    string

	pollInterval time.Duration
	batchSize    int64
	sweepTimeout time.Duration
}

func main() {
	cfg, err := loadSweeperConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.appEnv); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var shutdownTracer func(context.Context) error
	if cfg.otelEnabled {
		shutdownTracer, err = telemetry.InitTracer(
			cfg.otelEndpoint,
			fmt.Sprintf("%s-sweeper", cfg.appName),
			cfg.appVersion,
		)
		if err != nil {
			logger.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
			shutdownTracer = nil
		}
	}
	defer func() {
		if shutdownTracer == nil {
			return
		}
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("failed to shutdown tracer", zap.Error(err))
		}
	}()

	linkRepo, closeStorage, err := initLinkRepo(cfg)
	if err != nil {
		logger.Fatal("failed to initialize link repository", zap.Error(err))
	}
	defer closeStorage()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("sweeper started",
		zap.String("backend", cfg.storageBackend),
		zap.Duration("poll_interval", cfg.pollInterval),
		zap.Int64("batch_size", cfg.batchSize),
	)

	ticker := time.NewTicker(cfg.pollInterval)
	defer ticker.Stop()

	tracer := otel.Tracer("sweeper")
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopping")
			return
		default:
		}

		deleted, err := sweepOnce(ctx, tracer, linkRepo, cfg)
		if err != nil {
			logger.Error("sweep failed", zap.Error(err))
		}

		// A full batch means there is likely more backlog: keep going
		// without waiting for the next tick.
		if err == nil && deleted == cfg.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			logger.Info("sweeper stopping")
			return
		case <-ticker.C:
		}
	}
}

func sweepOnce(ctx context.Context, tracer trace.Tracer, linkRepo shortener.LinkRepository, cfg sweeperConfig) (int64, error) {
	sweepCtx, cancel := context.WithTimeout(ctx, cfg.sweepTimeout)
	defer cancel()

	now := time.Now().UTC()
	sweepCtx, span := tracer.Start(sweepCtx, "sweeper.delete_expired",
		trace.WithAttributes(
			attribute.Int64("sweep.batch_size", cfg.batchSize),
		),
	)
	defer span.End()

	deleted, err := linkRepo.DeleteExpired(sweepCtx, now, cfg.batchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete expired links failed")
		return 0, err
	}

	span.SetAttributes(attribute.Int64("sweep.deleted", deleted))
	if deleted > 0 {
		logger.Info("expired links deleted", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

func initLinkRepo(cfg sweeperConfig) (shortener.LinkRepository, func(), error) {
	switch cfg.storageBackend {
	case "mongo":
		mongoConn, err := db.ConnectMongo(cfg.mongoURI, cfg.mongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		linkRepo, err := mongoStorage.NewLinksRepository(mongoConn)
		if err != nil {
			_ = mongoConn.Disconnect()
			return nil, nil, fmt.Errorf("init mongo links repository: %w", err)
		}
		return linkRepo, func() { _ = mongoConn.Disconnect() }, nil

	case "postgres":
		pgConn, err := db.ConnectPostgres(context.Background(), cfg.postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		linkRepo, err := postgresStorage.NewLinksRepository(pgConn)
		if err != nil {
			pgConn.Close()
			return nil, nil, fmt.Errorf("init postgres links repository: %w", err)
		}
		return linkRepo, func() { _ = pgConn.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q for sweeper", cfg.storageBackend)
	}
}

func loadSweeperConfig() (sweeperConfig, error) {
	cfg := sweeperConfig{
		appEnv:         config.GetEnv("APP_ENV", "production"),
		appName:        config.GetEnv("APP_NAME", "shortlink"),
		appVersion:     config.GetEnv("APP_VERSION", "0.1.0"),
		otelEnabled:    config.GetEnvBool("OTEL_ENABLED", false),
		otelEndpoint:   config.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		storageBackend: config.GetEnv("STORAGE_BACKEND", "mongo"),
		mongoURI:       config.GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
		mongoDatabase:  config.GetEnv("MONGODB_DATABASE", "shortlink"),
		postgresDSN:    config.GetEnv("POSTGRES_DSN", config.DefaultPostgresDSN()),
		pollInterval:   config.GetEnvDuration("SWEEP_INTERVAL", time.Minute),
		batchSize:      int64(config.GetEnvInt("SWEEP_BATCH_SIZE", 1000)),
		sweepTimeout:   config.GetEnvDuration("SWEEP_TIMEOUT", 30*time.Second),
	}

	if cfg.pollInterval <= 0 {
		return sweeperConfig{}, fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if cfg.batchSize <= 0 {
		return sweeperConfig{}, fmt.Errorf("SWEEP_BATCH_SIZE must be > 0")
	}

	return cfg, nil
}
