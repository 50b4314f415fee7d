package usecase

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks . AccountRepository,BalanceRepository,BalanceCache

import (
	"context"
	"time"

	"github.com/iho/ledgerengine/internal/domain"
)

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByIDTx reads an account through tx instead of a separate connection.
	GetByIDTx(ctx context.Context, tx Transaction, id string) (*domain.Account, error)
	GetByIDs(ctx context.Context, tx Transaction, ids []string) ([]*domain.Account, error)
	GetByOwnerAndCode(ctx context.Context, tx Transaction, owner domain.Owner, code string) (*domain.Account, error)
	// LockCode serializes account creation for one (owner, code) pair until tx ends.
	LockCode(ctx context.Context, tx Transaction, owner domain.Owner, code string) error
	UpdateStatus(ctx context.Context, tx Transaction, id string, status domain.AccountStatus, updatedAt time.Time) error
	List(ctx context.Context, filter AccountFilter) ([]*domain.Account, error)
}

// AccountFilter narrows account listings.
type AccountFilter struct {
	Owner  *domain.Owner
	Limit  int
	Offset int
}

// LedgerTransactionRepository defines data access for ledger transactions.
type LedgerTransactionRepository interface {
	Create(ctx context.Context, tx Transaction, txn *domain.LedgerTransaction) error
	GetByID(ctx context.Context, id string) (*domain.LedgerTransaction, error)
	// GetByIDForUpdate locks the transaction row until tx ends.
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.LedgerTransaction, error)
	MarkPosted(ctx context.Context, tx Transaction, id string, postedAt time.Time) error
	MarkVoid(ctx context.Context, tx Transaction, id string, voidedAt time.Time) error
	GetReversal(ctx context.Context, tx Transaction, originalID string) (*domain.LedgerTransaction, error)
	ListByReference(ctx context.Context, ref domain.Reference) ([]*domain.LedgerTransaction, error)
}

// EntryRepository defines data access for entries.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.Entry) error
	Delete(ctx context.Context, tx Transaction, transactionID, entryID string) error
	DeleteByTransaction(ctx context.Context, tx Transaction, transactionID string) error
	ListByTransaction(ctx context.Context, transactionID string) ([]*domain.Entry, error)
	// ListByTransactionTx lists entries through tx instead of a separate connection.
	ListByTransactionTx(ctx context.Context, tx Transaction, transactionID string) ([]*domain.Entry, error)
	ListPostedByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Entry, error)
	SumPostedByAccount(ctx context.Context, accountID string) (domain.CurrencyTotal, error)
	SumPostedByAccountTx(ctx context.Context, tx Transaction, accountID string) (domain.CurrencyTotal, error)
}

// BalanceRepository defines data access for the per-account balance cache.
type BalanceRepository interface {
	Create(ctx context.Context, tx Transaction, balance *domain.AccountBalance) error
	GetByAccountID(ctx context.Context, accountID string) (*domain.AccountBalance, error)
	// LockForUpdate takes exclusive control of the balance records of ids in ascending id
	// order and returns the records that exist.
	LockForUpdate(ctx context.Context, tx Transaction, ids []string) ([]*domain.AccountBalance, error)
	Update(ctx context.Context, tx Transaction, balance *domain.AccountBalance) error
}

// LedgerRepository defines data access for ledger-wide operations.
type LedgerRepository interface {
	PostedTotals(ctx context.Context) ([]domain.CurrencyTotal, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation while it fails with a retryable error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// BalanceCache is a read-through cache in front of BalanceRepository.
type BalanceCache interface {
	Get(ctx context.Context, accountID string) (*domain.AccountBalance, error)
	// Set stores balance unless the cache already holds the same or a newer Version.
	Set(ctx context.Context, balance *domain.AccountBalance, ttl time.Duration) error
	Invalidate(ctx context.Context, accountIDs ...string) error
}

// IdempotencyPendingMarker is the stored value of a key whose first request is still running.
const IdempotencyPendingMarker = "processing"

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key so the request can be retried.
	Release(ctx context.Context, key string) error
}
