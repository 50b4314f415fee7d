package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/ledgerengine/internal/adapter/http/handler"
	"github.com/iho/ledgerengine/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/ledgerengine/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/ledgerengine/internal/adapter/repository/redis"
	"github.com/iho/ledgerengine/internal/infrastructure/config"
	"github.com/iho/ledgerengine/internal/infrastructure/postgres"
	"github.com/iho/ledgerengine/internal/infrastructure/redis"
	"github.com/iho/ledgerengine/internal/usecase"
)

// storage bundles the repositories of one backend plus the optional Redis layer.
type storage struct {
	txManager    usecase.TransactionManager
	accounts     usecase.AccountRepository
	transactions usecase.LedgerTransactionRepository
	entries      usecase.EntryRepository
	balances     usecase.BalanceRepository
	outbox       usecase.OutboxRepository
	ledger       usecase.LedgerRepository

	balanceCache usecase.BalanceCache
	idempotency  usecase.IdempotencyStore
	healthChecks []handler.HealthCheck

	closers []func()
}

// Close releases connections in reverse order of acquisition.
func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	var s *storage

	switch cfg.StorageDriver {
	case config.StorageMemory:
		s = newMemoryStorage(cfg)
		log.Warn().Msg("using in-memory storage; data is lost on restart")
	case config.StoragePostgres:
		var err error
		s, err = newPostgresStorage(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	if cfg.RedisURL == "" {
		return s, nil
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info().Msg("connected to redis")

	s.closers = append(s.closers, func() { _ = redisClient.Close() })
	s.balanceCache = redisRepo.NewBalanceCache(redisClient)
	s.idempotency = redisRepo.NewIdempotencyStore(redisClient)
	s.healthChecks = append(s.healthChecks, handler.HealthCheck{
		Name:  "redis",
		Check: redis.HealthCheck(redisClient),
	})

	return s, nil
}

func newMemoryStorage(cfg *config.Config) *storage {
	store := memory.NewStore(memory.WithLockTimeout(cfg.DatabaseLockTimeout))

	return &storage{
		txManager:    memory.NewTxManager(store),
		accounts:     memory.NewAccountRepository(store),
		transactions: memory.NewTransactionRepository(store),
		entries:      memory.NewEntryRepository(store),
		balances:     memory.NewBalanceRepository(store),
		outbox:       memory.NewOutboxRepository(store),
		ledger:       memory.NewLedgerRepository(store),
	}
}

func newPostgresStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, log); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	defer cancel()

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	log.Info().Msg("connected to postgres")

	return &storage{
		txManager:    postgresRepo.NewTxManager(pool, cfg.DatabaseLockTimeout),
		accounts:     postgresRepo.NewAccountRepository(pool),
		transactions: postgresRepo.NewTransactionRepository(pool),
		entries:      postgresRepo.NewEntryRepository(pool),
		balances:     postgresRepo.NewBalanceRepository(pool),
		outbox:       postgresRepo.NewOutboxRepository(pool),
		ledger:       postgresRepo.NewLedgerRepository(pool),
		healthChecks: []handler.HealthCheck{{
			Name:  "postgres",
			Check: postgres.HealthCheck(pool),
		}},
		closers: []func(){pool.Close},
	}, nil
}
