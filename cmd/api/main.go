package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mfontes/shortlink/internal/accounting"
	"github.com/mfontes/shortlink/internal/config"
	"github.com/mfontes/shortlink/internal/infrastructure/logger"
	"github.com/mfontes/shortlink/internal/infrastructure/telemetry"
	"github.com/mfontes/shortlink/internal/shortener"
	redisStorage "github.com/mfontes/shortlink/internal/storage/redis"
	"github.com/mfontes/shortlink/internal/targetcheck"
	httpTransport "github.com/mfontes/shortlink/internal/transport/http"
	"github.com/mfontes/shortlink/internal/transport/http/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.Env); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
	)

	var shutdownTracer func(context.Context) error
	if cfg.OTel.Enabled {
		var err error
		shutdownTracer, err = telemetry.InitTracer(cfg.OTel.Endpoint, cfg.App.Name, cfg.App.Version)
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			logger.Info("OpenTelemetry tracer initialized", zap.String("endpoint", cfg.OTel.Endpoint))
		}
	}

	linkRepo, statsRepo, closeStorage, err := initStorage(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer closeStorage()

	var sink accounting.EventSink
	var closeSink func() error
	if cfg.Kafka.Enabled {
		kafkaSink := accounting.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.ClickTopic)
		sink = kafkaSink
		closeSink = kafkaSink.Close
		logger.Info("Kafka click sink enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.ClickTopic),
		)
	}

	accountant := accounting.New(linkRepo, sink, accounting.Options{
		QueueSize:        cfg.Accounting.QueueSize,
		FlushInterval:    cfg.Accounting.FlushInterval,
		MaxBatchEvents:   cfg.Accounting.MaxBatchEvents,
		FlushTimeout:     cfg.Accounting.FlushTimeout,
		IncrementRetries: cfg.Accounting.IncrementRetries,
	})

	svc := shortener.NewService(linkRepo, statsRepo, shortener.NewClockRandomGenerator(), shortener.ServiceConfig{
		CodeLength:        cfg.Shortener.CodeLength,
		MaxCreateAttempts: cfg.Shortener.MaxCreateAttempts,
	}).WithAccountant(accountant)

	if cfg.Shortener.TargetCheck {
		svc = svc.WithTargetChecker(targetcheck.New())
		logger.Info("Target reachability check enabled")
	}

	routerOpts := httpTransport.DefaultRouterOptions()

	var redisClient *redisStorage.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisStorage.New(redisStorage.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()

		svc = svc.WithResolveCache(redisStorage.NewLinkCache(redisClient, "link", cfg.Redis.CacheTTL))

		limiterStore := redisStorage.NewFixedWindowLimiter(redisClient, "rl:create", time.Minute)
		routerOpts.CreateLimiter = middleware.NewRedisFixedWindowLimiter(limiterStore, cfg.Security.CreateRatePerMinute)
		logger.Info("Redis resolve cache and rate limiter enabled", zap.String("addr", cfg.Redis.Addr))
	}

	router := httpTransport.NewRouterWithOptions(cfg, svc, routerOpts)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
		}

		// Drain pending clicks after the listener stops accepting requests.
		if err := accountant.Shutdown(shutdownCtx); err != nil {
			logger.Error("Accountant shutdown error", zap.Error(err))
		}
		if closeSink != nil {
			if err := closeSink(); err != nil {
				logger.Warn("Kafka sink close error", zap.Error(err))
			}
		}

		if shutdownTracer != nil {
			_ = shutdownTracer(shutdownCtx)
		}
	}()

	logger.Info("Server starting",
		zap.String("port", cfg.Server.Port),
		zap.String("env", cfg.App.Env),
		zap.String("backend", cfg.Storage.Backend),
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("Server error", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
