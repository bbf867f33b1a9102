// Package persistence selects the repository backing the domain service.
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"example.com/exercisetracker/internal/config"
	"example.com/exercisetracker/internal/domain"
	"example.com/exercisetracker/internal/persistence/docstore"
	"example.com/exercisetracker/internal/persistence/memory"
	"example.com/exercisetracker/internal/persistence/postgres"
)

// Store bundles the opened repository with the resources behind it.
type Store struct {
	Repository domain.Repository
	// Pool is set only for the postgres driver; the outbox dispatcher needs it.
	Pool *pgxpool.Pool
}

// Close releases any held connections.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// Open builds the repository named by cfg.StoreDriver.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		logger.Info("using in-memory store")
		return &Store{Repository: memory.NewRepository()}, nil
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("using postgres store")
		return &Store{Repository: postgres.NewRepository(pool), Pool: pool}, nil
	case config.StoreDocument:
		if cfg.DocstoreURL == "" {
			return nil, errors.New("DOCSTORE_URL is required for the docstore driver")
		}
		logger.Info("using document store", zap.String("endpoint", cfg.DocstoreURL))
		return &Store{Repository: docstore.NewRepository(cfg.DocstoreURL, cfg.DocstoreAuth, cfg.HTTPTimeout)}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
