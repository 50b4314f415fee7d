package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgerengine/internal/domain"
)

var transactionColumnNames = []string{
	"id", "organization_id", "status", "reference_type", "reference_id", "occurred_at",
	"created_by", "created_at", "posted_at", "voided_at", "reverses_transaction_id",
}

func TestTransactionRepository_GetByIDForUpdate(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTransactionRepository(mock)
	tx := beginMockTx(t, mock)
	ts := pgtype.Timestamptz{Time: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), Valid: true}

	mock.ExpectQuery(regexp.QuoteMeta("FROM ledger_transactions WHERE id = $1 FOR UPDATE")).
		WithArgs("txn-1").
		WillReturnRows(mock.NewRows(transactionColumnNames).AddRow(
			"txn-1", "org-1", "posted", "order", "ord-9", ts, "user-1", ts, ts, nil, nil,
		))

	txn, err := repo.GetByIDForUpdate(context.Background(), tx, "txn-1")
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusPosted, txn.Status)
	assert.Equal(t, domain.Reference{Kind: domain.ReferenceKindOrder, ID: "ord-9"}, txn.Reference)
	require.NotNil(t, txn.OrganizationID)
	assert.Equal(t, "org-1", *txn.OrganizationID)
	require.NotNil(t, txn.PostedAt)
	assert.Nil(t, txn.VoidedAt)
	assert.Nil(t, txn.ReversesID)
	assertExpectations(t, mock)
}

func TestTransactionRepository_MarkPostedRequiresDraft(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTransactionRepository(mock)
	tx := beginMockTx(t, mock)

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'posted'")).
		WithArgs("txn-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.MarkPosted(context.Background(), tx, "txn-1", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotDraft)
}

func TestTransactionRepository_GetReversalNotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTransactionRepository(mock)
	tx := beginMockTx(t, mock)

	mock.ExpectQuery("WHERE reverses_transaction_id = ").
		WithArgs("txn-1").
		WillReturnRows(mock.NewRows(transactionColumnNames))

	_, err := repo.GetReversal(context.Background(), tx, "txn-1")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestTransactionRepository_ListByReference(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTransactionRepository(mock)
	ts := pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true}

	mock.ExpectQuery("WHERE reference_type = ").
		WithArgs("payment", "pay-1").
		WillReturnRows(mock.NewRows(transactionColumnNames).
			AddRow("txn-1", nil, "posted", "payment", "pay-1", ts, "svc", ts, ts, nil, nil).
			AddRow("txn-2", nil, "posted", "payment", "pay-1", ts, "svc", ts, ts, nil, "txn-1"))

	txns, err := repo.ListByReference(context.Background(), domain.Reference{Kind: domain.ReferenceKindPayment, ID: "pay-1"})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	require.NotNil(t, txns[1].ReversesID)
	assert.Equal(t, "txn-1", *txns[1].ReversesID)
}
