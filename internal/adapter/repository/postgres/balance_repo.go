package postgres

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

const balanceColumns = `account_id, currency, balance, total_debits, total_credits, version, updated_at`

const (
	createBalanceSQL = `
INSERT INTO account_balances (account_id, currency, balance, total_debits, total_credits, version, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getBalanceSQL = `SELECT ` + balanceColumns + ` FROM account_balances WHERE account_id = $1`

	lockBalanceSQL = getBalanceSQL + ` FOR UPDATE`

	updateBalanceSQL = `
UPDATE account_balances
SET balance = $2, total_debits = $3, total_credits = $4, version = $5, updated_at = $6
WHERE account_id = $1`
)

// BalanceRepository implements usecase.BalanceRepository.
type BalanceRepository struct {
	db DBTX
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(db DBTX) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Create creates the balance record of a new account.
func (r *BalanceRepository) Create(ctx context.Context, tx usecase.Transaction, balance *domain.AccountBalance) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, createBalanceSQL,
		balance.AccountID,
		balance.Currency,
		decimalToNumeric(balance.Balance),
		decimalToNumeric(balance.TotalDebits),
		decimalToNumeric(balance.TotalCredits),
		balance.Version,
		timeToPgTimestamptz(balance.UpdatedAt),
	)

	return mapError("create_balance", err)
}

// GetByAccountID retrieves the balance record of an account.
func (r *BalanceRepository) GetByAccountID(ctx context.Context, accountID string) (*domain.AccountBalance, error) {
	balance, err := scanBalance(r.db.QueryRow(ctx, getBalanceSQL, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, mapError("get_balance", err)
	}

	return balance, nil
}

// LockForUpdate locks balance rows one at a time in ascending account id order, so two
// posts over overlapping accounts always queue instead of deadlocking.
func (r *BalanceRepository) LockForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.AccountBalance, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	balances := make([]*domain.AccountBalance, 0, len(sorted))
	for i, id := range sorted {
		if i > 0 && sorted[i-1] == id {
			continue
		}

		balance, err := scanBalance(pgxTx.QueryRow(ctx, lockBalanceSQL, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, mapError("lock_balances", err)
		}
		balances = append(balances, balance)
	}

	return balances, nil
}

// Update writes a new balance value. The caller must hold the row lock.
func (r *BalanceRepository) Update(ctx context.Context, tx usecase.Transaction, balance *domain.AccountBalance) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, updateBalanceSQL,
		balance.AccountID,
		decimalToNumeric(balance.Balance),
		decimalToNumeric(balance.TotalDebits),
		decimalToNumeric(balance.TotalCredits),
		balance.Version,
		timeToPgTimestamptz(balance.UpdatedAt),
	)
	if err != nil {
		return mapError("update_balance", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

func scanBalance(row pgx.Row) (*domain.AccountBalance, error) {
	var (
		b                        domain.AccountBalance
		balance, debits, credits pgtype.Numeric
		updatedAt                pgtype.Timestamptz
	)

	if err := row.Scan(&b.AccountID, &b.Currency, &balance, &debits, &credits, &b.Version, &updatedAt); err != nil {
		return nil, err
	}

	b.Balance = numericToDecimal(balance)
	b.TotalDebits = numericToDecimal(debits)
	b.TotalCredits = numericToDecimal(credits)
	b.UpdatedAt = updatedAt.Time

	return &b, nil
}
