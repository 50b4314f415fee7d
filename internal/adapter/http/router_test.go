package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/ledgerengine/internal/adapter/http/dto"
	"github.com/iho/ledgerengine/internal/adapter/http/handler"
	apimiddleware "github.com/iho/ledgerengine/internal/adapter/http/middleware"
	"github.com/iho/ledgerengine/internal/adapter/idgen"
	"github.com/iho/ledgerengine/internal/adapter/repository/memory"
	"github.com/iho/ledgerengine/internal/infrastructure/metrics"
	"github.com/iho/ledgerengine/internal/infrastructure/retry"
	"github.com/iho/ledgerengine/internal/usecase"
)

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestNewRouter_IdempotencyMiddlewareInvokesStore(t *testing.T) {
	store := &stubIdempotencyStore{}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
	}))

	body := `{"owner_kind":"organization","owner_id":"org-1","code":"1000","name":"Cash","type":"asset","currency":"USD"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if !store.checkCalled {
		t.Fatalf("expected idempotency store to be used")
	}
	if !store.updateCalled {
		t.Fatalf("expected successful response to be stored, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(registry)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.Metrics = m
		cfg.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /metrics to return 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ledger_http_requests_total") {
		t.Fatalf("expected http request metrics to be exported")
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig())

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"POST /api/v1/accounts/",
		"GET /api/v1/accounts/",
		"GET /api/v1/accounts/{id}",
		"POST /api/v1/accounts/{id}/close",
		"GET /api/v1/accounts/{id}/balance",
		"POST /api/v1/transactions/",
		"POST /api/v1/transactions/{id}/entries",
		"DELETE /api/v1/transactions/{id}/entries/{entryID}",
		"GET /api/v1/transactions/{id}/preview",
		"POST /api/v1/transactions/{id}/post",
		"POST /api/v1/transactions/{id}/void",
		"POST /api/v1/transactions/{id}/reverse",
		"GET /api/v1/ledger/consistency",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func TestNewRouter_PostingFlow(t *testing.T) {
	router := NewRouter(newRouterConfig())

	cash := createAccount(t, router, "1000", "asset")
	revenue := createAccount(t, router, "4000", "revenue")

	var txn dto.TransactionResponse
	doJSON(t, router, http.MethodPost, "/api/v1/transactions/", dto.OpenTransactionRequest{
		ReferenceType: "order",
		ReferenceID:   "ord-1",
		CreatedBy:     "checkout",
	}, http.StatusCreated, &txn)

	doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txn.ID+"/entries", dto.AppendEntryRequest{
		AccountID: cash.ID, Direction: "debit", Amount: "100.00", Currency: "USD",
	}, http.StatusCreated, nil)

	var rejected dto.ErrorResponse
	doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txn.ID+"/post", nil, http.StatusUnprocessableEntity, &rejected)
	if rejected.Details["residual"] != "100" {
		t.Fatalf("unexpected rejection: %+v", rejected)
	}

	doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txn.ID+"/entries", dto.AppendEntryRequest{
		AccountID: revenue.ID, Direction: "credit", Amount: "60", Currency: "USD",
	}, http.StatusCreated, nil)

	doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txn.ID+"/post", nil, http.StatusUnprocessableEntity, &rejected)
	if rejected.Code != "unbalanced_transaction" || rejected.Details["residual"] != "40" {
		t.Fatalf("unexpected rejection: %+v", rejected)
	}

	doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txn.ID+"/entries", dto.AppendEntryRequest{
		AccountID: revenue.ID, Direction: "credit", Amount: "40", Currency: "USD",
	}, http.StatusCreated, nil)

	var preview dto.BalanceReportResponse
	doJSON(t, router, http.MethodGet, "/api/v1/transactions/"+txn.ID+"/preview", nil, http.StatusOK, &preview)
	if !preview.Balanced || preview.EntryCount != 3 {
		t.Fatalf("unexpected preview: %+v", preview)
	}

	var posted dto.TransactionResponse
	doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txn.ID+"/post", nil, http.StatusOK, &posted)
	if posted.Status != "posted" {
		t.Fatalf("expected posted, got %s", posted.Status)
	}

	doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txn.ID+"/post", nil, http.StatusConflict, nil)

	var balance dto.BalanceResponse
	doJSON(t, router, http.MethodGet, "/api/v1/accounts/"+revenue.ID+"/balance", nil, http.StatusOK, &balance)
	if balance.Balance != "100" || balance.Version != 2 {
		t.Fatalf("unexpected revenue balance: %+v", balance)
	}

	doJSON(t, router, http.MethodPost, "/api/v1/accounts/"+revenue.ID+"/close", nil, http.StatusConflict, nil)

	var reversal dto.TransactionResponse
	doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txn.ID+"/reverse", dto.ReverseTransactionRequest{CreatedBy: "support"}, http.StatusCreated, &reversal)
	if reversal.ReversesTransactionID == nil || *reversal.ReversesTransactionID != txn.ID {
		t.Fatalf("unexpected reversal: %+v", reversal)
	}

	doJSON(t, router, http.MethodPost, "/api/v1/transactions/"+txn.ID+"/reverse", dto.ReverseTransactionRequest{CreatedBy: "support"}, http.StatusConflict, nil)

	doJSON(t, router, http.MethodGet, "/api/v1/accounts/"+revenue.ID+"/balance", nil, http.StatusOK, &balance)
	if balance.Balance != "0" {
		t.Fatalf("expected zero balance after reversal, got %s", balance.Balance)
	}

	var closed dto.AccountResponse
	doJSON(t, router, http.MethodPost, "/api/v1/accounts/"+revenue.ID+"/close", nil, http.StatusOK, &closed)
	if closed.Status != "closed" {
		t.Fatalf("expected closed account, got %s", closed.Status)
	}

	var consistency dto.ConsistencyResponse
	doJSON(t, router, http.MethodGet, "/api/v1/ledger/consistency", nil, http.StatusOK, &consistency)
	if !consistency.Consistent {
		t.Fatalf("expected consistent ledger: %+v", consistency)
	}

	var byRef []dto.TransactionResponse
	doJSON(t, router, http.MethodGet, "/api/v1/transactions/?reference_type=order&reference_id=ord-1", nil, http.StatusOK, &byRef)
	if len(byRef) != 1 || byRef[0].ID != txn.ID {
		t.Fatalf("unexpected transactions by reference: %+v", byRef)
	}
}

func createAccount(t *testing.T, router http.Handler, code, typ string) dto.AccountResponse {
	t.Helper()

	var account dto.AccountResponse
	doJSON(t, router, http.MethodPost, "/api/v1/accounts/", dto.CreateAccountRequest{
		OwnerKind: "organization",
		OwnerID:   "org-1",
		Code:      code,
		Name:      code,
		Type:      typ,
		Currency:  "USD",
	}, http.StatusCreated, &account)
	return account
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, wantStatus int, out any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, wantStatus, rec.Code, rec.Body.String())
	}

	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
}

func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	store := memory.NewStore()
	txManager := memory.NewTxManager(store)
	accountRepo := memory.NewAccountRepository(store)
	txnRepo := memory.NewTransactionRepository(store)
	entryRepo := memory.NewEntryRepository(store)
	balanceRepo := memory.NewBalanceRepository(store)
	outboxRepo := memory.NewOutboxRepository(store)

	logger := zerolog.Nop()
	ids := idgen.NewULIDGenerator()
	retrier := retry.New(retry.Config{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}, logger)

	accountUC := usecase.NewAccountUseCase(txManager, accountRepo, balanceRepo, outboxRepo, ids, nil, logger)
	txnUC := usecase.NewTransactionUseCase(
		txManager, accountRepo, txnRepo, entryRepo, balanceRepo, outboxRepo,
		ids, retrier, usecase.DefaultPostingPolicy(), nil, logger,
	)
	entryUC := usecase.NewEntryUseCase(txnRepo, accountRepo, entryRepo)
	balanceUC := usecase.NewBalanceUseCase(accountRepo, balanceRepo, nil, 0, nil, logger)
	ledgerUC := usecase.NewLedgerUseCase(memory.NewLedgerRepository(store))
	reconciliationUC := usecase.NewReconciliationUseCase(txManager, accountRepo, balanceRepo, entryRepo, ledgerUC, nil, logger)

	cfg := RouterConfig{
		HealthHandler:      handler.NewHealthHandler(),
		AccountHandler:     handler.NewAccountHandler(accountUC, balanceUC),
		TransactionHandler: handler.NewTransactionHandler(txnUC),
		EntryHandler:       handler.NewEntryHandler(entryUC),
		LedgerHandler:      handler.NewLedgerHandler(ledgerUC, reconciliationUC),
		Logger:             logger,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type stubIdempotencyStore struct {
	checkCalled  bool
	updateCalled bool
}

func (s *stubIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.checkCalled = true
	return false, nil, nil
}

func (s *stubIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.updateCalled = true
	return nil
}

func (s *stubIdempotencyStore) Release(ctx context.Context, key string) error {
	return nil
}
