package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CurrencyTotal holds the debit and credit sums of one currency group.
type CurrencyTotal struct {
	Currency string
	Debits   decimal.Decimal
	Credits  decimal.Decimal
}

// Net returns Σdebit − Σcredit.
func (c CurrencyTotal) Net() decimal.Decimal {
	return c.Debits.Sub(c.Credits)
}

// BalanceReport summarizes a set of entries grouped by currency.
type BalanceReport struct {
	Totals      []CurrencyTotal
	EntryCount  int
	DebitCount  int
	CreditCount int
	// Violation is the first currency group that does not net to zero, if any.
	Violation *UnbalancedTransactionError
}

// Balanced reports whether every currency group nets to zero.
func (r *BalanceReport) Balanced() bool {
	return r.Violation == nil
}

// HasOffsettingSides reports whether the entries include at least one debit and one credit.
func (r *BalanceReport) HasOffsettingSides() bool {
	return r.DebitCount > 0 && r.CreditCount > 0
}

// SummarizeEntries groups entries by currency. Currencies are reported in sorted order so the
// first violation is deterministic. It never mutates its input.
func SummarizeEntries(entries []*Entry) *BalanceReport {
	groups := make(map[string]*CurrencyTotal)
	report := &BalanceReport{EntryCount: len(entries)}

	for _, e := range entries {
		g, ok := groups[e.Currency]
		if !ok {
			g = &CurrencyTotal{Currency: e.Currency, Debits: decimal.Zero, Credits: decimal.Zero}
			groups[e.Currency] = g
		}

		switch e.Direction {
		case DirectionDebit:
			g.Debits = g.Debits.Add(e.Amount)
			report.DebitCount++
		case DirectionCredit:
			g.Credits = g.Credits.Add(e.Amount)
			report.CreditCount++
		}
	}

	currencies := make([]string, 0, len(groups))
	for c := range groups {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	report.Totals = make([]CurrencyTotal, 0, len(currencies))
	for _, c := range currencies {
		total := *groups[c]
		report.Totals = append(report.Totals, total)

		if report.Violation == nil && !total.Net().IsZero() {
			report.Violation = &UnbalancedTransactionError{Currency: c, Residual: total.Net()}
		}
	}

	return report
}

// ValidateBalanced returns an *UnbalancedTransactionError for the first currency group whose
// signed sum is not exactly zero, or nil. An empty set is balanced.
func ValidateBalanced(entries []*Entry) error {
	if v := SummarizeEntries(entries).Violation; v != nil {
		return v
	}
	return nil
}
