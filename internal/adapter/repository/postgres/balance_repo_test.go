package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgerengine/internal/domain"
)

var balanceColumnNames = []string{"account_id", "currency", "balance", "total_debits", "total_credits", "version", "updated_at"}

func TestBalanceRepository_LockForUpdateLocksInAscendingOrder(t *testing.T) {
	mock := newMockPool(t)
	repo := NewBalanceRepository(mock)
	tx := beginMockTx(t, mock)
	ts := pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true}

	lockSQL := regexp.QuoteMeta("FROM account_balances WHERE account_id = $1 FOR UPDATE")
	mock.ExpectQuery(lockSQL).WithArgs("acc-a").
		WillReturnRows(mock.NewRows(balanceColumnNames).AddRow("acc-a", "USD", "-100.5", "100.5", "0", int64(1), ts))
	mock.ExpectQuery(lockSQL).WithArgs("acc-b").
		WillReturnRows(mock.NewRows(balanceColumnNames))
	mock.ExpectQuery(lockSQL).WithArgs("acc-c").
		WillReturnRows(mock.NewRows(balanceColumnNames).AddRow("acc-c", "USD", "100.5", "0", "100.5", int64(1), ts))

	balances, err := repo.LockForUpdate(context.Background(), tx, []string{"acc-c", "acc-a", "acc-b", "acc-a"})
	require.NoError(t, err)
	require.Len(t, balances, 2)

	assert.Equal(t, "acc-a", balances[0].AccountID)
	assert.True(t, balances[0].Balance.Equal(decimal.RequireFromString("-100.5")))
	assert.True(t, balances[0].TotalDebits.Equal(decimal.RequireFromString("100.5")))
	assert.Equal(t, "acc-c", balances[1].AccountID)
	assertExpectations(t, mock)
}

func TestBalanceRepository_LockTimeoutIsConcurrencyConflict(t *testing.T) {
	mock := newMockPool(t)
	repo := NewBalanceRepository(mock)
	tx := beginMockTx(t, mock)

	mock.ExpectQuery("FOR UPDATE").WithArgs("acc-a").
		WillReturnError(&pgconn.PgError{Code: codeLockNotAvailable})

	_, err := repo.LockForUpdate(context.Background(), tx, []string{"acc-a"})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}

func TestBalanceRepository_Update(t *testing.T) {
	mock := newMockPool(t)
	repo := NewBalanceRepository(mock)
	tx := beginMockTx(t, mock)

	mock.ExpectExec("UPDATE account_balances").
		WithArgs("acc-a", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), int64(3), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Update(context.Background(), tx, &domain.AccountBalance{
		AccountID:    "acc-a",
		Currency:     "USD",
		Balance:      decimal.NewFromInt(10),
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.NewFromInt(10),
		Version:      3,
		UpdatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
	assertExpectations(t, mock)
}

func TestBalanceRepository_GetByAccountIDNotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewBalanceRepository(mock)

	mock.ExpectQuery("FROM account_balances").WithArgs("missing").
		WillReturnRows(mock.NewRows(balanceColumnNames))

	_, err := repo.GetByAccountID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
