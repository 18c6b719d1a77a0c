package server

import (
	"context"
	"fmt"
	"log/slog"

	"movierental/internal/config"
	"movierental/internal/store"
	"movierental/internal/store/boltstore"
	"movierental/internal/store/postgres"
)

// OpenStore opens and migrates the store selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		s, err = postgres.Open(cfg.DatabaseURL)
	case config.DriverBolt:
		s, err = boltstore.Open(cfg.BoltPath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.StoreDriver, err)
	}
	logger.InfoContext(ctx, "store ready", "driver", cfg.StoreDriver)
	return s, nil
}
