package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/ledgerengine/internal/adapter/http"
	"github.com/iho/ledgerengine/internal/adapter/http/handler"
	"github.com/iho/ledgerengine/internal/adapter/http/middleware"
	"github.com/iho/ledgerengine/internal/adapter/idgen"
	"github.com/iho/ledgerengine/internal/infrastructure/config"
	"github.com/iho/ledgerengine/internal/infrastructure/eventpublisher"
	"github.com/iho/ledgerengine/internal/infrastructure/logger"
	"github.com/iho/ledgerengine/internal/infrastructure/metrics"
	"github.com/iho/ledgerengine/internal/infrastructure/retry"
	"github.com/iho/ledgerengine/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "ledgerengine",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	app := buildApp(cfg, store, m, log)

	// Outbox relay
	publisher, closePublisher := newOutboxPublisher(cfg, log)
	defer closePublisher()

	relay := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: store.outbox,
		Publisher:  publisher,
		Metrics:    m,
		Logger:     log,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
	})

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	go func() {
		if err := relay.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	if app.rateLimiter != nil {
		go sweepRateLimiter(workerCtx, app.rateLimiter, log)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      app.handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.HTTPPort).
			Str("storage", cfg.StorageDriver).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

type app struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// buildApp wires use cases and HTTP handlers on top of store.
func buildApp(cfg *config.Config, store *storage, m *metrics.Metrics, log zerolog.Logger) *app {
	ids := idgen.NewULIDGenerator()

	retrier := retry.New(retry.Config{
		MaxRetries:      cfg.PostMaxRetries,
		InitialInterval: cfg.PostRetryInitial,
		MaxInterval:     cfg.PostRetryMax,
		MaxElapsedTime:  cfg.PostRetryMaxElapsed,
	}, log).OnRetry(func(error) {
		m.PostRetries.Inc()
	})

	policy := usecase.DefaultPostingPolicy()
	policy.RequireOffsettingEntries = cfg.RequireOffsettingEntries

	// Initialize use cases
	accountUC := usecase.NewAccountUseCase(store.txManager, store.accounts, store.balances, store.outbox, ids, m, log)
	txnUC := usecase.NewTransactionUseCase(
		store.txManager, store.accounts, store.transactions, store.entries, store.balances, store.outbox,
		ids, retrier, policy, m, log,
	)
	if store.balanceCache != nil {
		txnUC = txnUC.WithBalanceCache(store.balanceCache, cfg.BalanceCacheTTL)
	}
	entryUC := usecase.NewEntryUseCase(store.transactions, store.accounts, store.entries)
	balanceUC := usecase.NewBalanceUseCase(store.accounts, store.balances, store.balanceCache, cfg.BalanceCacheTTL, m, log)
	ledgerUC := usecase.NewLedgerUseCase(store.ledger)
	reconciliationUC := usecase.NewReconciliationUseCase(store.txManager, store.accounts, store.balances, store.entries, ledgerUC, m, log)

	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:     handler.NewAccountHandler(accountUC, balanceUC),
		TransactionHandler: handler.NewTransactionHandler(txnUC),
		EntryHandler:       handler.NewEntryHandler(entryUC),
		LedgerHandler:      handler.NewLedgerHandler(ledgerUC, reconciliationUC),
		HealthHandler:      handler.NewHealthHandler(store.healthChecks...),
		IdempotencyStore:   store.idempotency,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		RateLimiter:        limiter,
		Metrics:            m,
		MetricsHandler:     promhttp.Handler(),
		Logger:             log,
	})

	return &app{handler: router, rateLimiter: limiter}
}

func newOutboxPublisher(cfg *config.Config, log zerolog.Logger) (eventpublisher.Publisher, func()) {
	if cfg.OutboxPublisher == config.PublisherKafka {
		kp := eventpublisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing outbox events to kafka")
		return kp, func() {
			if err := kp.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka writer")
			}
		}
	}
	return eventpublisher.NewLogPublisher(log), func() {}
}

func sweepRateLimiter(ctx context.Context, rl *middleware.RateLimiter, log zerolog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Cleanup(10 * time.Minute); n > 0 {
				log.Debug().Int("clients", n).Msg("evicted idle rate limiter entries")
			}
		}
	}
}
