package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerengine/internal/domain"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	store *Store
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

// PostedTotals sums posted entries per currency, in currency order.
func (r *LedgerRepository) PostedTotals(ctx context.Context) ([]domain.CurrencyTotal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	groups := make(map[string]*domain.CurrencyTotal)
	for _, e := range r.store.entries {
		if !r.store.isPosted(e.TransactionID) {
			continue
		}

		g, ok := groups[e.Currency]
		if !ok {
			g = &domain.CurrencyTotal{Currency: e.Currency, Debits: decimal.Zero, Credits: decimal.Zero}
			groups[e.Currency] = g
		}

		switch e.Direction {
		case domain.DirectionDebit:
			g.Debits = g.Debits.Add(e.Amount)
		case domain.DirectionCredit:
			g.Credits = g.Credits.Add(e.Amount)
		}
	}

	totals := make([]domain.CurrencyTotal, 0, len(groups))
	for _, g := range groups {
		totals = append(totals, *g)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Currency < totals[j].Currency })

	return totals, nil
}
