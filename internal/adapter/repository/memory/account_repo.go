package memory

import (
	"context"
	"sort"
	"time"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// Create stages a new account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	key := codeKey(account.Owner, account.Code)

	r.store.mu.RLock()
	_, exists := r.store.codes[key]
	r.store.mu.RUnlock()
	if exists || mt.isStaged("code:"+key) {
		return domain.ErrDuplicateCode
	}

	a := cloneAccount(account)
	if err := mt.stage(func(s *Store) {
		s.accounts[a.ID] = a
		s.codes[key] = a.ID
	}); err != nil {
		return err
	}
	mt.markStaged("code:" + key)
	mt.markStaged("account:" + a.ID)

	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

// GetByIDTx retrieves an account by ID for a unit of work.
func (r *AccountRepository) GetByIDTx(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByIDs retrieves the accounts that exist among ids, in the order given.
func (r *AccountRepository) GetByIDs(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	accounts := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.store.accounts[id]; ok {
			accounts = append(accounts, cloneAccount(a))
		}
	}
	return accounts, nil
}

// GetByOwnerAndCode retrieves an account by its code within an owner scope.
func (r *AccountRepository) GetByOwnerAndCode(ctx context.Context, tx usecase.Transaction, owner domain.Owner, code string) (*domain.Account, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.codes[codeKey(owner, code)]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(r.store.accounts[id]), nil
}

// LockCode serializes account creation for one (owner, code) pair.
func (r *AccountRepository) LockCode(ctx context.Context, tx usecase.Transaction, owner domain.Owner, code string) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	return mt.lock(ctx, "create_account", "code:"+codeKey(owner, code))
}

// UpdateStatus stages a status change.
func (r *AccountRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.AccountStatus, updatedAt time.Time) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	r.store.mu.RLock()
	_, ok := r.store.accounts[id]
	r.store.mu.RUnlock()
	if !ok {
		return domain.ErrAccountNotFound
	}

	return mt.stage(func(s *Store) {
		a := s.accounts[id]
		a.Status = status
		a.UpdatedAt = updatedAt
		if status == domain.AccountStatusClosed {
			closedAt := updatedAt
			a.ClosedAt = &closedAt
		}
	})
}

// List lists accounts in creation order.
func (r *AccountRepository) List(ctx context.Context, filter usecase.AccountFilter) ([]*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []*domain.Account
	for _, a := range r.store.accounts {
		if filter.Owner != nil && a.Owner != *filter.Owner {
			continue
		}
		matched = append(matched, a)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	page := paginate(matched, filter.Limit, filter.Offset)

	accounts := make([]*domain.Account, 0, len(page))
	for _, a := range page {
		accounts = append(accounts, cloneAccount(a))
	}
	return accounts, nil
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
