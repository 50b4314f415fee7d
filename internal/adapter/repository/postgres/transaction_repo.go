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

const transactionColumns = `id, organization_id, status, reference_type, reference_id, occurred_at, created_by, created_at, posted_at, voided_at, reverses_transaction_id`

const (
	createTransactionSQL = `
INSERT INTO ledger_transactions (id, organization_id, status, reference_type, reference_id, occurred_at, created_by, created_at, reverses_transaction_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getTransactionByIDSQL = `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE id = $1`

	getTransactionByIDForUpdateSQL = getTransactionByIDSQL + ` FOR UPDATE`

	markTransactionPostedSQL = `
UPDATE ledger_transactions SET status = 'posted', posted_at = $2
WHERE id = $1 AND status = 'draft'`

	markTransactionVoidSQL = `
UPDATE ledger_transactions SET status = 'void', voided_at = $2
WHERE id = $1 AND status = 'draft'`

	getReversalSQL = `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE reverses_transaction_id = $1`

	listTransactionsByReferenceSQL = `
SELECT ` + transactionColumns + ` FROM ledger_transactions
WHERE reference_type = $1 AND reference_id = $2
ORDER BY created_at, id`
)

// TransactionRepository implements usecase.LedgerTransactionRepository.
type TransactionRepository struct {
	db DBTX
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create creates a new ledger transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.LedgerTransaction) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, createTransactionSQL,
		txn.ID,
		optionalText(txn.OrganizationID),
		string(txn.Status),
		string(txn.Reference.Kind),
		txn.Reference.ID,
		timeToPgTimestamptz(txn.OccurredAt),
		txn.CreatedBy,
		timeToPgTimestamptz(txn.CreatedAt),
		optionalText(txn.ReversesID),
	)

	return mapError("create_transaction", err)
}

// GetByID retrieves a ledger transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.LedgerTransaction, error) {
	return r.get(ctx, r.db, "get_transaction", getTransactionByIDSQL, id)
}

// GetByIDForUpdate retrieves a ledger transaction with a FOR UPDATE lock.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerTransaction, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	return r.get(ctx, pgxTx, "lock_transaction", getTransactionByIDForUpdateSQL, id)
}

func (r *TransactionRepository) get(ctx context.Context, db DBTX, op, query, id string) (*domain.LedgerTransaction, error) {
	txn, err := scanTransaction(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, mapError(op, err)
	}

	return txn, nil
}

// MarkPosted moves a draft to posted.
func (r *TransactionRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id string, postedAt time.Time) error {
	return r.transition(ctx, tx, "mark_posted", markTransactionPostedSQL, id, postedAt)
}

// MarkVoid moves a draft to void.
func (r *TransactionRepository) MarkVoid(ctx context.Context, tx usecase.Transaction, id string, voidedAt time.Time) error {
	return r.transition(ctx, tx, "mark_void", markTransactionVoidSQL, id, voidedAt)
}

func (r *TransactionRepository) transition(ctx context.Context, tx usecase.Transaction, op, query, id string, at time.Time) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, query, id, timeToPgTimestamptz(at))
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotDraft
	}

	return nil
}

// GetReversal returns the transaction that reverses originalID.
func (r *TransactionRepository) GetReversal(ctx context.Context, tx usecase.Transaction, originalID string) (*domain.LedgerTransaction, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	return r.get(ctx, pgxTx, "get_reversal", getReversalSQL, originalID)
}

// ListByReference lists transactions for a reference in creation order.
func (r *TransactionRepository) ListByReference(ctx context.Context, ref domain.Reference) ([]*domain.LedgerTransaction, error) {
	rows, err := r.db.Query(ctx, listTransactionsByReferenceSQL, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, mapError("list_transactions_by_reference", err)
	}
	defer rows.Close()

	txns := make([]*domain.LedgerTransaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.LedgerTransaction, error) {
	var (
		t                          domain.LedgerTransaction
		status, referenceType      string
		organizationID, reversesID pgtype.Text
		occurredAt, createdAt      pgtype.Timestamptz
		postedAt, voidedAt         pgtype.Timestamptz
	)

	if err := row.Scan(
		&t.ID,
		&organizationID,
		&status,
		&referenceType,
		&t.Reference.ID,
		&occurredAt,
		&t.CreatedBy,
		&createdAt,
		&postedAt,
		&voidedAt,
		&reversesID,
	); err != nil {
		return nil, err
	}

	t.OrganizationID = textPtr(organizationID)
	t.Status = domain.TransactionStatus(status)
	t.Reference.Kind = domain.ReferenceKind(referenceType)
	t.OccurredAt = occurredAt.Time
	t.CreatedAt = createdAt.Time
	t.PostedAt = timestamptzPtr(postedAt)
	t.VoidedAt = timestamptzPtr(voidedAt)
	t.ReversesID = textPtr(reversesID)

	return &t, nil
}
