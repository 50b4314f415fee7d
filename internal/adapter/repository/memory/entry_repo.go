package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	store *Store
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(store *Store) *EntryRepository {
	return &EntryRepository{store: store}
}

// Create stages a new entry.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	e := cloneEntry(entry)
	return mt.stage(func(s *Store) {
		s.entries[e.ID] = e
		s.byTxn[e.TransactionID] = append(s.byTxn[e.TransactionID], e.ID)
		s.byAccount[e.AccountID] = append(s.byAccount[e.AccountID], e.ID)
	})
}

// Delete stages removal of one entry of a transaction.
func (r *EntryRepository) Delete(ctx context.Context, tx usecase.Transaction, transactionID, entryID string) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	r.store.mu.RLock()
	e, ok := r.store.entries[entryID]
	r.store.mu.RUnlock()
	if !ok || e.TransactionID != transactionID {
		return domain.ErrEntryNotFound
	}

	return mt.stage(func(s *Store) {
		s.removeEntry(entryID)
	})
}

// DeleteByTransaction stages removal of every entry of a transaction.
func (r *EntryRepository) DeleteByTransaction(ctx context.Context, tx usecase.Transaction, transactionID string) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	return mt.stage(func(s *Store) {
		ids := append([]string(nil), s.byTxn[transactionID]...)
		for _, id := range ids {
			s.removeEntry(id)
		}
		delete(s.byTxn, transactionID)
	})
}

// ListByTransaction returns the entries of a transaction in creation order.
func (r *EntryRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*domain.Entry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := r.store.byTxn[transactionID]
	entries := make([]*domain.Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, cloneEntry(r.store.entries[id]))
	}
	return entries, nil
}

// ListByTransactionTx lists the entries of a transaction for a unit of work.
func (r *EntryRepository) ListByTransactionTx(ctx context.Context, tx usecase.Transaction, transactionID string) ([]*domain.Entry, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	return r.ListByTransaction(ctx, transactionID)
}

// ListPostedByAccount lists posted entries of an account, oldest first.
func (r *EntryRepository) ListPostedByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Entry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var posted []*domain.Entry
	for _, id := range r.store.byAccount[accountID] {
		e := r.store.entries[id]
		if r.store.isPosted(e.TransactionID) {
			posted = append(posted, e)
		}
	}

	page := paginate(posted, limit, offset)

	entries := make([]*domain.Entry, 0, len(page))
	for _, e := range page {
		entries = append(entries, cloneEntry(e))
	}
	return entries, nil
}

// SumPostedByAccount totals posted debits and credits of an account.
func (r *EntryRepository) SumPostedByAccount(ctx context.Context, accountID string) (domain.CurrencyTotal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	total := domain.CurrencyTotal{Debits: decimal.Zero, Credits: decimal.Zero}
	if a, ok := r.store.accounts[accountID]; ok {
		total.Currency = a.Currency
	}

	for _, id := range r.store.byAccount[accountID] {
		e := r.store.entries[id]
		if !r.store.isPosted(e.TransactionID) {
			continue
		}
		switch e.Direction {
		case domain.DirectionDebit:
			total.Debits = total.Debits.Add(e.Amount)
		case domain.DirectionCredit:
			total.Credits = total.Credits.Add(e.Amount)
		}
	}

	return total, nil
}

// SumPostedByAccountTx totals posted entries for a unit of work.
func (r *EntryRepository) SumPostedByAccountTx(ctx context.Context, tx usecase.Transaction, accountID string) (domain.CurrencyTotal, error) {
	if _, err := asTx(tx); err != nil {
		return domain.CurrencyTotal{}, err
	}
	return r.SumPostedByAccount(ctx, accountID)
}

// removeEntry must be called with s.mu held for writing.
func (s *Store) removeEntry(id string) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.entries, id)
	s.byTxn[e.TransactionID] = without(s.byTxn[e.TransactionID], id)
	s.byAccount[e.AccountID] = without(s.byAccount[e.AccountID], id)
}

// isPosted must be called with s.mu held.
func (s *Store) isPosted(transactionID string) bool {
	t, ok := s.txns[transactionID]
	return ok && t.Status == domain.TransactionStatusPosted
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func cloneEntry(e *domain.Entry) *domain.Entry {
	c := *e
	return &c
}
