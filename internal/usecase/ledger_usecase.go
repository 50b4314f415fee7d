package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iho/ledgerengine/internal/domain"
)

// ErrInconsistentLedger is returned when posted entries do not net to zero in some currency.
var ErrInconsistentLedger = errors.New("ledger is inconsistent: debits do not equal credits")

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	ledgerRepo LedgerRepository
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(ledgerRepo LedgerRepository) *LedgerUseCase {
	return &LedgerUseCase{
		ledgerRepo: ledgerRepo,
	}
}

// ConsistencyReport lists per-currency totals of all posted entries.
type ConsistencyReport struct {
	Totals     []domain.CurrencyTotal
	Consistent bool
	CheckedAt  time.Time
}

// CheckConsistency verifies that Σdebit = Σcredit for every currency across posted entries.
// The report is returned together with ErrInconsistentLedger when a currency is off.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	totals, err := uc.ledgerRepo.PostedTotals(ctx)
	if err != nil {
		return nil, err
	}

	report := &ConsistencyReport{
		Totals:     totals,
		Consistent: true,
		CheckedAt:  time.Now().UTC(),
	}

	for _, t := range totals {
		if !t.Net().IsZero() {
			report.Consistent = false
			return report, fmt.Errorf("%w: currency %s debits=%s credits=%s",
				ErrInconsistentLedger, t.Currency, t.Debits.String(), t.Credits.String())
		}
	}

	return report, nil
}
