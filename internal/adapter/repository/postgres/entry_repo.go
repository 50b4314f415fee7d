package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

const entryColumns = `e.id, e.transaction_id, e.account_id, e.direction, e.amount, e.currency, e.asset_id, e.created_at`

const (
	createEntrySQL = `
INSERT INTO ledger_entries (id, transaction_id, account_id, direction, amount, currency, asset_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	deleteEntrySQL = `DELETE FROM ledger_entries WHERE transaction_id = $1 AND id = $2`

	deleteEntriesByTransactionSQL = `DELETE FROM ledger_entries WHERE transaction_id = $1`

	listEntriesByTransactionSQL = `
SELECT ` + entryColumns + ` FROM ledger_entries e
WHERE e.transaction_id = $1
ORDER BY e.seq`

	listPostedEntriesByAccountSQL = `
SELECT ` + entryColumns + ` FROM ledger_entries e
JOIN ledger_transactions t ON t.id = e.transaction_id
WHERE e.account_id = $1 AND t.status = 'posted'
ORDER BY e.seq
LIMIT $2 OFFSET $3`

	sumPostedEntriesByAccountSQL = `
SELECT a.currency,
       COALESCE(SUM(e.amount) FILTER (WHERE e.direction = 'debit'), 0),
       COALESCE(SUM(e.amount) FILTER (WHERE e.direction = 'credit'), 0)
FROM accounts a
LEFT JOIN ledger_entries e ON e.account_id = a.id
    AND EXISTS (SELECT 1 FROM ledger_transactions t WHERE t.id = e.transaction_id AND t.status = 'posted')
WHERE a.id = $1
GROUP BY a.currency`
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	db DBTX
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db DBTX) *EntryRepository {
	return &EntryRepository{db: db}
}

// Create creates a new entry.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, createEntrySQL,
		entry.ID,
		entry.TransactionID,
		entry.AccountID,
		string(entry.Direction),
		decimalToNumeric(entry.Amount),
		entry.Currency,
		optionalText(entry.AssetID),
		timeToPgTimestamptz(entry.CreatedAt),
	)

	return mapError("create_entry", err)
}

// Delete removes one entry of a transaction.
func (r *EntryRepository) Delete(ctx context.Context, tx usecase.Transaction, transactionID, entryID string) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	tag, err := pgxTx.Exec(ctx, deleteEntrySQL, transactionID, entryID)
	if err != nil {
		return mapError("delete_entry", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// DeleteByTransaction removes every entry of a transaction.
func (r *EntryRepository) DeleteByTransaction(ctx context.Context, tx usecase.Transaction, transactionID string) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}

	_, err = pgxTx.Exec(ctx, deleteEntriesByTransactionSQL, transactionID)

	return mapError("delete_entries", err)
}

// ListByTransaction returns the entries of a transaction in creation order.
func (r *EntryRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*domain.Entry, error) {
	return r.listByTransaction(ctx, r.db, transactionID)
}

// ListByTransactionTx is ListByTransaction on the connection held by tx.
func (r *EntryRepository) ListByTransactionTx(ctx context.Context, tx usecase.Transaction, transactionID string) ([]*domain.Entry, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return nil, err
	}

	return r.listByTransaction(ctx, pgxTx, transactionID)
}

func (r *EntryRepository) listByTransaction(ctx context.Context, db DBTX, transactionID string) ([]*domain.Entry, error) {
	rows, err := db.Query(ctx, listEntriesByTransactionSQL, transactionID)
	if err != nil {
		return nil, mapError("list_entries", err)
	}

	return collectEntries(rows)
}

// ListPostedByAccount lists posted entries of an account, oldest first.
func (r *EntryRepository) ListPostedByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Entry, error) {
	rows, err := r.db.Query(ctx, listPostedEntriesByAccountSQL, accountID, limit, offset)
	if err != nil {
		return nil, mapError("list_account_entries", err)
	}

	return collectEntries(rows)
}

// SumPostedByAccount totals posted debits and credits of an account.
func (r *EntryRepository) SumPostedByAccount(ctx context.Context, accountID string) (domain.CurrencyTotal, error) {
	return r.sumPostedByAccount(ctx, r.db, accountID)
}

// SumPostedByAccountTx totals posted entries inside tx, so the sum shares the
// snapshot of balance rows read in the same transaction.
func (r *EntryRepository) SumPostedByAccountTx(ctx context.Context, tx usecase.Transaction, accountID string) (domain.CurrencyTotal, error) {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return domain.CurrencyTotal{}, err
	}

	return r.sumPostedByAccount(ctx, pgxTx, accountID)
}

func (r *EntryRepository) sumPostedByAccount(ctx context.Context, db DBTX, accountID string) (domain.CurrencyTotal, error) {
	var (
		currency        string
		debits, credits pgtype.Numeric
	)

	err := db.QueryRow(ctx, sumPostedEntriesByAccountSQL, accountID).Scan(&currency, &debits, &credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CurrencyTotal{Debits: decimal.Zero, Credits: decimal.Zero}, nil
		}
		return domain.CurrencyTotal{}, mapError("sum_account_entries", err)
	}

	return domain.CurrencyTotal{
		Currency: currency,
		Debits:   numericToDecimal(debits),
		Credits:  numericToDecimal(credits),
	}, nil
}

func collectEntries(rows pgx.Rows) ([]*domain.Entry, error) {
	defer rows.Close()

	entries := make([]*domain.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.Entry, error) {
	var (
		e         domain.Entry
		direction string
		amount    pgtype.Numeric
		assetID   pgtype.Text
		createdAt pgtype.Timestamptz
	)

	if err := row.Scan(
		&e.ID,
		&e.TransactionID,
		&e.AccountID,
		&direction,
		&amount,
		&e.Currency,
		&assetID,
		&createdAt,
	); err != nil {
		return nil, err
	}

	e.Direction = domain.Direction(direction)
	e.Amount = numericToDecimal(amount)
	e.AssetID = textPtr(assetID)
	e.CreatedAt = createdAt.Time

	return &e, nil
}
