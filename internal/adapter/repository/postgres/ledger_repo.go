package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/ledgerengine/internal/domain"
)

const postedTotalsSQL = `
SELECT e.currency,
       COALESCE(SUM(e.amount) FILTER (WHERE e.direction = 'debit'), 0),
       COALESCE(SUM(e.amount) FILTER (WHERE e.direction = 'credit'), 0)
FROM ledger_entries e
JOIN ledger_transactions t ON t.id = e.transaction_id
WHERE t.status = 'posted'
GROUP BY e.currency
ORDER BY e.currency`

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	db DBTX
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// PostedTotals sums posted entries per currency, in currency order.
func (r *LedgerRepository) PostedTotals(ctx context.Context) ([]domain.CurrencyTotal, error) {
	rows, err := r.db.Query(ctx, postedTotalsSQL)
	if err != nil {
		return nil, mapError("posted_totals", err)
	}
	defer rows.Close()

	totals := make([]domain.CurrencyTotal, 0)
	for rows.Next() {
		var (
			currency        string
			debits, credits pgtype.Numeric
		)
		if err := rows.Scan(&currency, &debits, &credits); err != nil {
			return nil, err
		}

		totals = append(totals, domain.CurrencyTotal{
			Currency: currency,
			Debits:   numericToDecimal(debits),
			Credits:  numericToDecimal(credits),
		})
	}

	return totals, rows.Err()
}
