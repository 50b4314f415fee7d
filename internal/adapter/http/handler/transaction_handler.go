package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgerengine/internal/adapter/http/dto"
	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

// TransactionService defines the behavior needed by TransactionHandler.
type TransactionService interface {
	OpenDraft(ctx context.Context, input usecase.OpenDraftInput) (*domain.LedgerTransaction, error)
	AppendEntry(ctx context.Context, input usecase.AppendEntryInput) (*domain.Entry, error)
	RemoveEntry(ctx context.Context, transactionID, entryID string) error
	Post(ctx context.Context, transactionID string) (*domain.LedgerTransaction, error)
	Void(ctx context.Context, transactionID string) (*domain.LedgerTransaction, error)
	Reverse(ctx context.Context, input usecase.ReverseInput) (*domain.LedgerTransaction, error)
	Preview(ctx context.Context, transactionID string) (*domain.BalanceReport, error)
	GetTransaction(ctx context.Context, id string) (*domain.LedgerTransaction, error)
	ListTransactionsByReference(ctx context.Context, ref domain.Reference) ([]*domain.LedgerTransaction, error)
}

// TransactionHandler handles ledger transaction HTTP requests.
type TransactionHandler struct {
	txnUC TransactionService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(txnUC TransactionService) *TransactionHandler {
	return &TransactionHandler{txnUC: txnUC}
}

// Open opens a draft transaction.
func (h *TransactionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req dto.OpenTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	txn, err := h.txnUC.OpenDraft(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, "failed to open transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(txn))
}

// Get retrieves a transaction by ID.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction ID", "")
		return
	}

	txn, err := h.txnUC.GetTransaction(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(txn))
}

// ListByReference lists every transaction recorded against one business reference.
func (h *TransactionHandler) ListByReference(w http.ResponseWriter, r *http.Request) {
	ref := domain.Reference{
		Kind: domain.ReferenceKind(r.URL.Query().Get("reference_type")),
		ID:   r.URL.Query().Get("reference_id"),
	}

	txns, err := h.txnUC.ListTransactionsByReference(r.Context(), ref)
	if err != nil {
		writeDomainError(w, "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsFromDomain(txns))
}

// AppendEntry adds an entry to a draft transaction.
func (h *TransactionHandler) AppendEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction ID", "")
		return
	}

	var req dto.AppendEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	entry, err := h.txnUC.AppendEntry(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to append entry", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// RemoveEntry deletes an entry from a draft transaction.
func (h *TransactionHandler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entryID := chi.URLParam(r, "entryID")
	if id == "" || entryID == "" {
		writeError(w, http.StatusBadRequest, "missing transaction or entry ID", "")
		return
	}

	if err := h.txnUC.RemoveEntry(r.Context(), id, entryID); err != nil {
		writeDomainError(w, "failed to remove entry", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Preview reports whether a draft would post as it stands.
func (h *TransactionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction ID", "")
		return
	}

	report, err := h.txnUC.Preview(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to preview transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceReportFromDomain(report))
}

// Post validates and posts a draft transaction.
func (h *TransactionHandler) Post(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to post transaction", h.txnUC.Post)
}

// Void abandons a draft transaction.
func (h *TransactionHandler) Void(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to void transaction", h.txnUC.Void)
}

func (h *TransactionHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	message string,
	op func(ctx context.Context, id string) (*domain.LedgerTransaction, error),
) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction ID", "")
		return
	}

	txn, err := op(r.Context(), id)
	if err != nil {
		writeDomainError(w, message, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(txn))
}

// Reverse posts a compensating transaction for a posted one.
func (h *TransactionHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction ID", "")
		return
	}

	var req dto.ReverseTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	txn, err := h.txnUC.Reverse(r.Context(), req.ToUseCaseInput(id))
	if err != nil {
		writeDomainError(w, "failed to reverse transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(txn))
}
