package main

import (
	"context"
	"fmt"

	"github.com/hpungsan/pocket/internal/config"
	"github.com/hpungsan/pocket/internal/db"
	"github.com/hpungsan/pocket/internal/kv"
	"github.com/hpungsan/pocket/internal/logging"
	"github.com/hpungsan/pocket/internal/store"
)

// openBackend opens the key/value backend selected by cfg.Backend.
func openBackend(ctx context.Context, cfg *config.Config) (kv.KV, error) {
	switch cfg.Backend {
	case config.BackendSQLite, "":
		sqlite, err := db.Open(cfg.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		db.ConfigurePool(sqlite.DB(), cfg)
		return sqlite, nil
	case config.BackendMemory:
		return kv.NewMemory(), nil
	case config.BackendRedis:
		return kv.NewRedis(ctx, cfg.RedisURL, cfg.KeyPrefix)
	case config.BackendPostgres:
		return kv.NewPostgres(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// openStore opens the configured backend and wraps it in a capsule store.
func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (*store.Store, error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Debug("store opened", "backend", cfg.Backend)
	return store.New(backend, store.WithLogger(log)), nil
}
