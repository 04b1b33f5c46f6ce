package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osse101/riddlegroup/internal/config"
	"github.com/osse101/riddlegroup/internal/database"
	"github.com/osse101/riddlegroup/internal/database/memory"
	"github.com/osse101/riddlegroup/internal/database/postgres"
	"github.com/osse101/riddlegroup/internal/ledger"
	"github.com/osse101/riddlegroup/internal/logger"
	"github.com/osse101/riddlegroup/internal/repository"
	"github.com/osse101/riddlegroup/migrations"
)

// Stores holds the group repository and the two ledgers the group service
// runs against. Pool is nil for the in-memory store.
type Stores struct {
	Groups     repository.Group
	Reputation ledger.Reputation
	Tokens     ledger.Token
	Pool       *pgxpool.Pool
}

// ReadinessPool returns the pool as a readiness probe target, or nil when
// there is no database behind the stores
func (s *Stores) ReadinessPool() database.Pool {
	if s.Pool == nil {
		return nil
	}
	return s.Pool
}

// Close releases the database pool, if any
func (s *Stores) Close() {
	if s.Pool != nil {
		s.Pool.Close()
		logger.Info(LogMsgDatabaseClosed)
	}
}

// InitializeStores builds the stores selected by cfg.Store. The postgres
// store connects, applies pending migrations and shares one pool between
// the group repository and both ledgers.
func InitializeStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Store {
	case config.StoreMemory, "":
		logger.Info(LogMsgStoreInitialized, "store", config.StoreMemory)
		return &Stores{
			Groups:     memory.NewGroupStore(),
			Reputation: ledger.NewMemoryReputation(nil),
			Tokens:     ledger.NewMemoryToken(),
		}, nil
	case config.StorePostgres:
		return initializePostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("%s: %q", ErrMsgUnknownStore, cfg.Store)
	}
}

func initializePostgres(ctx context.Context, cfg *config.Config) (*Stores, error) {
	pool, err := database.NewPool(ctx, database.PoolConfig{
		ConnString:      cfg.GetDBConnString(),
		MaxConns:        cfg.DBMaxConns,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedConnectDatabase, err)
	}

	if err := database.Migrate(ctx, pool, migrations.FS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedMigrateDatabase, err)
	}

	logger.Info(LogMsgStoreInitialized,
		"store", config.StorePostgres,
		"db_host", cfg.DBHost,
		"db_name", cfg.DBName)

	return &Stores{
		Groups:     postgres.NewGroupRepository(pool),
		Reputation: postgres.NewReputationLedger(pool),
		Tokens:     postgres.NewTokenLedger(pool),
		Pool:       pool,
	}, nil
}
