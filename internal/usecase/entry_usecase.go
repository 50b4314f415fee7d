package usecase

import (
	"context"

	"github.com/iho/ledgerengine/internal/domain"
)

// EntryUseCase handles entry reads.
type EntryUseCase struct {
	txnRepo     LedgerTransactionRepository
	accountRepo AccountRepository
	entryRepo   EntryRepository
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(txnRepo LedgerTransactionRepository, accountRepo AccountRepository, entryRepo EntryRepository) *EntryUseCase {
	return &EntryUseCase{
		txnRepo:     txnRepo,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
	}
}

// ListEntries returns the entries of a transaction in creation order.
func (uc *EntryUseCase) ListEntries(ctx context.Context, transactionID string) ([]*domain.Entry, error) {
	if _, err := uc.txnRepo.GetByID(ctx, transactionID); err != nil {
		return nil, err
	}

	return uc.entryRepo.ListByTransaction(ctx, transactionID)
}

// ListEntriesByAccountInput represents input for listing entries.
type ListEntriesByAccountInput struct {
	AccountID string
	Limit     int
	Offset    int
}

// ListEntriesByAccount lists posted entries for an account.
func (uc *EntryUseCase) ListEntriesByAccount(ctx context.Context, input ListEntriesByAccountInput) ([]*domain.Entry, error) {
	if _, err := uc.accountRepo.GetByID(ctx, input.AccountID); err != nil {
		return nil, err
	}

	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)

	return uc.entryRepo.ListPostedByAccount(ctx, input.AccountID, limit, offset)
}
