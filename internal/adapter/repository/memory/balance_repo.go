package memory

import (
	"context"
	"sort"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

// BalanceRepository implements usecase.BalanceRepository.
type BalanceRepository struct {
	store *Store
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(store *Store) *BalanceRepository {
	return &BalanceRepository{store: store}
}

// Create stages the balance record of a new account.
func (r *BalanceRepository) Create(ctx context.Context, tx usecase.Transaction, balance *domain.AccountBalance) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	b := cloneBalance(balance)
	return mt.stage(func(s *Store) {
		s.balances[b.AccountID] = b
	})
}

// GetByAccountID retrieves the balance record of an account.
func (r *BalanceRepository) GetByAccountID(ctx context.Context, accountID string) (*domain.AccountBalance, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	b, ok := r.store.balances[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneBalance(b), nil
}

// LockForUpdate locks the balance records of ids in ascending id order and returns the
// committed records that exist.
func (r *BalanceRepository) LockForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.AccountBalance, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	for _, id := range sorted {
		if err := mt.lock(ctx, "lock_balances", balanceLockKey(id)); err != nil {
			return nil, err
		}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	balances := make([]*domain.AccountBalance, 0, len(sorted))
	for _, id := range sorted {
		if b, ok := r.store.balances[id]; ok {
			balances = append(balances, cloneBalance(b))
		}
	}
	return balances, nil
}

// Update stages a new balance record value.
func (r *BalanceRepository) Update(ctx context.Context, tx usecase.Transaction, balance *domain.AccountBalance) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	mt.mu.Lock()
	locked := mt.held[balanceLockKey(balance.AccountID)]
	mt.mu.Unlock()
	if !locked {
		return &domain.ConcurrencyConflictError{Op: "update_balance", Err: errNotLocked}
	}

	b := cloneBalance(balance)
	return mt.stage(func(s *Store) {
		s.balances[b.AccountID] = b
	})
}

func cloneBalance(b *domain.AccountBalance) *domain.AccountBalance {
	c := *b
	return &c
}
