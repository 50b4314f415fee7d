package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgerengine/internal/adapter/http/dto"
	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	CreateAccount(ctx context.Context, input usecase.CreateAccountInput) (*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error)
	CloseAccount(ctx context.Context, id string) (*domain.Account, error)
	SuspendAccount(ctx context.Context, id string) (*domain.Account, error)
	ReopenAccount(ctx context.Context, id string) (*domain.Account, error)
}

// BalanceService defines the balance lookups used by AccountHandler.
type BalanceService interface {
	GetAccountBalance(ctx context.Context, accountID string) (*usecase.AccountBalanceView, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	accountUC AccountService
	balanceUC BalanceService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountUC AccountService, balanceUC BalanceService) *AccountHandler {
	return &AccountHandler{accountUC: accountUC, balanceUC: balanceUC}
}

// Create creates a new account.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.accountUC.CreateAccount(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, "failed to create account", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// Get retrieves an account by ID.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	account, err := h.accountUC.GetAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// List lists accounts, optionally scoped to one owner.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	input := usecase.ListAccountsInput{
		Limit:  limit,
		Offset: offset,
	}

	ownerKind := r.URL.Query().Get("owner_kind")
	ownerID := r.URL.Query().Get("owner_id")
	if ownerKind != "" || ownerID != "" {
		input.Owner = &domain.Owner{Kind: domain.OwnerKind(ownerKind), ID: ownerID}
	}

	accounts, err := h.accountUC.ListAccounts(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to list accounts", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListAccountsResponse{
		Accounts: dto.AccountsFromDomain(accounts),
		Limit:    limit,
		Offset:   offset,
	})
}

// Close closes an account with a zero balance.
func (h *AccountHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, "failed to close account", h.accountUC.CloseAccount)
}

// Suspend suspends an open account.
func (h *AccountHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, "failed to suspend account", h.accountUC.SuspendAccount)
}

// Reopen reopens a suspended account.
func (h *AccountHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, "failed to reopen account", h.accountUC.ReopenAccount)
}

func (h *AccountHandler) changeStatus(
	w http.ResponseWriter,
	r *http.Request,
	message string,
	op func(ctx context.Context, id string) (*domain.Account, error),
) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	account, err := op(r.Context(), id)
	if err != nil {
		writeDomainError(w, message, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// GetBalance returns the cached balance of an account.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	view, err := h.balanceUC.GetAccountBalance(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromView(view))
}
