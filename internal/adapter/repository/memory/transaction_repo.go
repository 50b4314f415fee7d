package memory

import (
	"context"
	"sort"
	"time"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

// TransactionRepository implements usecase.LedgerTransactionRepository.
type TransactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

// Create stages a new ledger transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.LedgerTransaction) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	t := cloneTxn(txn)
	if err := mt.stage(func(s *Store) {
		s.txns[t.ID] = t
		if t.ReversesID != nil {
			s.reversals[*t.ReversesID] = t.ID
		}
	}); err != nil {
		return err
	}
	mt.markStaged("txn:" + t.ID)

	return nil
}

// GetByID retrieves a ledger transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.LedgerTransaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	t, ok := r.store.txns[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTxn(t), nil
}

// GetByIDForUpdate locks the transaction until tx ends and returns its committed state.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerTransaction, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}

	if err := mt.lock(ctx, "lock_transaction", txnLockKey(id)); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// MarkPosted stages the draft → posted transition.
func (r *TransactionRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id string, postedAt time.Time) error {
	return r.transition(tx, id, func(t *domain.LedgerTransaction) {
		t.Status = domain.TransactionStatusPosted
		t.PostedAt = &postedAt
	})
}

// MarkVoid stages the draft → void transition.
func (r *TransactionRepository) MarkVoid(ctx context.Context, tx usecase.Transaction, id string, voidedAt time.Time) error {
	return r.transition(tx, id, func(t *domain.LedgerTransaction) {
		t.Status = domain.TransactionStatusVoid
		t.VoidedAt = &voidedAt
	})
}

func (r *TransactionRepository) transition(tx usecase.Transaction, id string, apply func(t *domain.LedgerTransaction)) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	r.store.mu.RLock()
	_, ok := r.store.txns[id]
	r.store.mu.RUnlock()
	if !ok && !mt.isStaged("txn:"+id) {
		return domain.ErrTransactionNotFound
	}

	return mt.stage(func(s *Store) {
		if t, ok := s.txns[id]; ok {
			apply(t)
		}
	})
}

// GetReversal returns the transaction that reverses originalID.
func (r *TransactionRepository) GetReversal(ctx context.Context, tx usecase.Transaction, originalID string) (*domain.LedgerTransaction, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.reversals[originalID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTxn(r.store.txns[id]), nil
}

// ListByReference lists transactions for a reference in creation order.
func (r *TransactionRepository) ListByReference(ctx context.Context, ref domain.Reference) ([]*domain.LedgerTransaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var txns []*domain.LedgerTransaction
	for _, t := range r.store.txns {
		if t.Reference == ref {
			txns = append(txns, cloneTxn(t))
		}
	}

	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].CreatedAt.Before(txns[j].CreatedAt)
		}
		return txns[i].ID < txns[j].ID
	})

	return txns, nil
}

func cloneTxn(t *domain.LedgerTransaction) *domain.LedgerTransaction {
	c := *t
	return &c
}
