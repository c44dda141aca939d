// Package backend picks the history repository named by HISTORY_BACKEND.
package backend

import (
	"context"
	"errors"
	"fmt"

	"kisan-mitra/api/internal/config"
	"kisan-mitra/api/internal/history"
	"kisan-mitra/api/internal/history/pgstore"
	"kisan-mitra/api/internal/history/redisstore"
	"kisan-mitra/api/internal/logger"
)

const (
	Memory   = "memory"
	File     = "file"
	Postgres = "postgres"
	Redis    = "redis"
)

var ErrNoDSN = errors.New("postgres history backend needs DATABASE_URL or POSTGRES_PASSWORD")

// Open builds the repository and returns a close func for its connection.
func Open(ctx context.Context, cfg *config.Config) (history.Repository, func() error, error) {
	noop := func() error { return nil }

	switch cfg.HistoryBackend {
	case "", Memory:
		return history.NewMemoryRepo(), noop, nil

	case File:
		logger.Infof("history: file %s", cfg.HistoryFile)
		return history.NewFileRepo(cfg.HistoryFile), noop, nil

	case Postgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, ErrNoDSN
		}
		logger.Infof("history: postgres %s", config.SafeDSNSummary(cfg.DatabaseURL))
		db, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo := pgstore.New(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate history table: %w", err)
		}
		return repo, db.Close, nil

	case Redis:
		client, err := redisstore.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return redisstore.New(client, 0), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown HISTORY_BACKEND %q", cfg.HistoryBackend)
	}
}
