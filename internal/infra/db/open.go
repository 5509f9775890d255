// Package db selects and opens the document store backend named in config.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/config"
	"sports-tips-subscription/internal/domain/ports/repository"
	fbstore "sports-tips-subscription/internal/infra/db/firebase"
	"sports-tips-subscription/internal/infra/db/memory"
	"sports-tips-subscription/internal/infra/db/postgres"
)

// Backend bundles a document store with its transaction manager.
type Backend struct {
	Store repository.DocumentStore
	Tx    repository.TransactionManager
	// Pool is set only for the postgres driver.
	Pool  *pgxpool.Pool
	close func()
}

func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

func Open(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*Backend, error) {
	log := logger.With().Str("component", "db").Str("driver", cfg.Database.Driver).Logger()
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		log.Info().Msg("document store ready")
		return &Backend{
			Store: postgres.NewDocumentStore(pool),
			Tx:    postgres.NewTxManager(pool),
			Pool:  pool,
			close: pool.Close,
		}, nil
	case config.DriverFirebase:
		cli, err := fbstore.NewClient(ctx, cfg.Firebase)
		if err != nil {
			return nil, fmt.Errorf("firebase: %w", err)
		}
		s := fbstore.NewStore(cli)
		log.Info().Str("database_url", cfg.Firebase.DatabaseURL).Msg("document store ready")
		return &Backend{Store: s, Tx: s}, nil
	case config.DriverMemory:
		s := memory.NewStore()
		log.Warn().Msg("in-memory document store: data is lost on restart")
		return &Backend{Store: s, Tx: s}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}
