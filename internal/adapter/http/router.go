package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/ledgerengine/internal/adapter/http/handler"
	"github.com/iho/ledgerengine/internal/adapter/http/middleware"
	"github.com/iho/ledgerengine/internal/infrastructure/metrics"
	"github.com/iho/ledgerengine/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler     *handler.AccountHandler
	TransactionHandler *handler.TransactionHandler
	EntryHandler       *handler.EntryHandler
	LedgerHandler      *handler.LedgerHandler
	HealthHandler      *handler.HealthHandler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	MetricsHandler   http.Handler
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Accounts
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Create)
			r.Get("/", cfg.AccountHandler.List)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.Post("/{id}/close", cfg.AccountHandler.Close)
			r.Post("/{id}/suspend", cfg.AccountHandler.Suspend)
			r.Post("/{id}/reopen", cfg.AccountHandler.Reopen)
			r.Get("/{id}/balance", cfg.AccountHandler.GetBalance)
			r.Get("/{id}/entries", cfg.EntryHandler.ListByAccount)
			r.Get("/{id}/reconcile", cfg.LedgerHandler.ReconcileAccount)
		})

		// Ledger transactions
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", cfg.TransactionHandler.Open)
			r.Get("/", cfg.TransactionHandler.ListByReference)
			r.Get("/{id}", cfg.TransactionHandler.Get)
			r.Get("/{id}/entries", cfg.EntryHandler.ListByTransaction)
			r.Post("/{id}/entries", cfg.TransactionHandler.AppendEntry)
			r.Delete("/{id}/entries/{entryID}", cfg.TransactionHandler.RemoveEntry)
			r.Get("/{id}/preview", cfg.TransactionHandler.Preview)
			r.Post("/{id}/post", cfg.TransactionHandler.Post)
			r.Post("/{id}/void", cfg.TransactionHandler.Void)
			r.Post("/{id}/reverse", cfg.TransactionHandler.Reverse)
		})

		// Ledger-wide checks
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/consistency", cfg.LedgerHandler.CheckConsistency)
			r.Get("/reconciliation", cfg.LedgerHandler.ReconciliationReport)
		})
	})

	return r
}
