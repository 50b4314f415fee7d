package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

const accountColumns = `id, owner_kind, owner_id, code, name, type, status, currency, parent_id, created_at, updated_at, closed_at`

const (
	createAccountSQL = `
INSERT INTO accounts (id, owner_kind, owner_id, code, name, type, status, currency, parent_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	getAccountByIDSQL = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	getAccountsByIDsSQL = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1) ORDER BY id`

	getAccountByOwnerAndCodeSQL = `
SELECT ` + accountColumns + ` FROM accounts
WHERE owner_kind = $1 AND owner_id = $2 AND code = $3`

	lockAccountCodeSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	updateAccountStatusSQL = `
UPDATE accounts
SET status = $2,
    updated_at = $3,
    closed_at = CASE WHEN $2 = 'closed' THEN $3 ELSE closed_at END
WHERE id = $1`

	listAccountsSQL = `
SELECT ` + accountColumns + ` FROM accounts
ORDER BY created_at, id
LIMIT $1 OFFSET $2`

	listAccountsByOwnerSQL = `
SELECT ` + accountColumns + ` FROM accounts
WHERE owner_kind = $1 AND owner_id = $2
ORDER BY created_at, id
LIMIT $3 OFFSET $4`
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	db DBTX
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, createAccountSQL,
		account.ID,
		string(account.Owner.Kind),
		account.Owner.ID,
		account.Code,
		account.Name,
		string(account.Type),
		string(account.Status),
		account.Currency,
		optionalText(account.ParentID),
		timeToPgTimestamptz(account.CreatedAt),
		timeToPgTimestamptz(account.UpdatedAt),
	)

	return mapError("create_account", err)
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getByID(ctx, r.db, id)
}

// GetByIDTx retrieves an account by ID on the connection held by tx.
func (r *AccountRepository) GetByIDTx(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	return r.getByID(ctx, pgxTx, id)
}

func (r *AccountRepository) getByID(ctx context.Context, db DBTX, id string) (*domain.Account, error) {
	account, err := scanAccount(db.QueryRow(ctx, getAccountByIDSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, mapError("get_account", err)
	}

	return account, nil
}

// GetByIDs retrieves the accounts that exist among ids, ordered by id.
func (r *AccountRepository) GetByIDs(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	rows, err := pgxTx.Query(ctx, getAccountsByIDsSQL, ids)
	if err != nil {
		return nil, mapError("get_accounts", err)
	}

	return collectAccounts(rows)
}

// GetByOwnerAndCode retrieves an account by its code within an owner scope.
func (r *AccountRepository) GetByOwnerAndCode(ctx context.Context, tx usecase.Transaction, owner domain.Owner, code string) (*domain.Account, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	account, err := scanAccount(pgxTx.QueryRow(ctx, getAccountByOwnerAndCodeSQL, string(owner.Kind), owner.ID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, mapError("get_account_by_code", err)
	}

	return account, nil
}

// LockCode takes a transaction-scoped advisory lock on the (owner, code) pair.
func (r *AccountRepository) LockCode(ctx context.Context, tx usecase.Transaction, owner domain.Owner, code string) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, lockAccountCodeSQL, "account_code:"+owner.Key()+"/"+code)

	return mapError("lock_account_code", err)
}

// UpdateStatus sets the account status. Closing also records closed_at.
func (r *AccountRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.AccountStatus, updatedAt time.Time) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, updateAccountStatusSQL, id, string(status), timeToPgTimestamptz(updatedAt))
	if err != nil {
		return mapError("update_account_status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// List lists accounts with pagination, optionally within one owner scope.
func (r *AccountRepository) List(ctx context.Context, filter usecase.AccountFilter) ([]*domain.Account, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if filter.Owner != nil {
		rows, err = r.db.Query(ctx, listAccountsByOwnerSQL, string(filter.Owner.Kind), filter.Owner.ID, filter.Limit, filter.Offset)
	} else {
		rows, err = r.db.Query(ctx, listAccountsSQL, filter.Limit, filter.Offset)
	}
	if err != nil {
		return nil, mapError("list_accounts", err)
	}

	return collectAccounts(rows)
}

func collectAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a                              domain.Account
		ownerKind, accountType, status string
		parentID                       pgtype.Text
		createdAt, updatedAt, closedAt pgtype.Timestamptz
	)

	if err := row.Scan(
		&a.ID,
		&ownerKind,
		&a.Owner.ID,
		&a.Code,
		&a.Name,
		&accountType,
		&status,
		&a.Currency,
		&parentID,
		&createdAt,
		&updatedAt,
		&closedAt,
	); err != nil {
		return nil, err
	}

	a.Owner.Kind = domain.OwnerKind(ownerKind)
	a.Type = domain.AccountType(accountType)
	a.Status = domain.AccountStatus(status)
	a.ParentID = textPtr(parentID)
	a.CreatedAt = createdAt.Time
	a.UpdatedAt = updatedAt.Time
	a.ClosedAt = timestamptzPtr(closedAt)

	return &a, nil
}
