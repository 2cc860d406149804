package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mfontes/shortlink/internal/config"
	"github.com/mfontes/shortlink/internal/infrastructure/db"
	"github.com/mfontes/shortlink/internal/infrastructure/logger"
	"github.com/mfontes/shortlink/internal/shortener"
	"github.com/mfontes/shortlink/internal/storage/memory"
	mongoStorage "github.com/mfontes/shortlink/internal/storage/mongo"
	postgresStorage "github.com/mfontes/shortlink/internal/storage/postgres"
)

// initStorage builds the link and stats repositories for the configured
// backend and returns a cleanup func for the underlying connection.
func initStorage(cfg *config.Config) (shortener.LinkRepository, shortener.StatsRepository, func(), error) {
	switch cfg.Storage.Backend {
	case "mongo":
		mongoConn, err := db.ConnectMongo(cfg.MongoDB.URI, cfg.MongoDB.Database)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		linkRepo, err := mongoStorage.NewLinksRepository(mongoConn)
		if err != nil {
			_ = mongoConn.Disconnect()
			return nil, nil, nil, fmt.Errorf("init mongo links repository: %w", err)
		}
		statsRepo, err := mongoStorage.NewClickStatsRepository(mongoConn)
		if err != nil {
			_ = mongoConn.Disconnect()
			return nil, nil, nil, fmt.Errorf("init mongo stats repository: %w", err)
		}
		logger.Info("Storage backend selected", zap.String("backend", "mongo"))
		return linkRepo, statsRepo, func() { _ = mongoConn.Disconnect() }, nil

	case "postgres":
		pgConn, err := db.ConnectPostgres(context.Background(), cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		linkRepo, err := postgresStorage.NewLinksRepository(pgConn)
		if err != nil {
			pgConn.Close()
			return nil, nil, nil, fmt.Errorf("init postgres links repository: %w", err)
		}
		statsRepo, err := postgresStorage.NewClickStatsRepository(pgConn)
		if err != nil {
			pgConn.Close()
			return nil, nil, nil, fmt.Errorf("init postgres stats repository: %w", err)
		}
		logger.Info("Storage backend selected", zap.String("backend", "postgres"))
		return linkRepo, statsRepo, func() { _ = pgConn.Close() }, nil

	case "memory":
		logger.Info("Storage backend selected", zap.String("backend", "memory"))
		return memory.NewLinkStore(), memory.NewStatsStore(), func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
