package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/infrastructure/metrics"
)

// ReconciliationUseCase handles balance reconciliation operations
type ReconciliationUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	balanceRepo BalanceRepository
	entryRepo   EntryRepository
	ledger      *LedgerUseCase
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	balanceRepo BalanceRepository,
	entryRepo EntryRepository,
	ledger *LedgerUseCase,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		balanceRepo: balanceRepo,
		entryRepo:   entryRepo,
		ledger:      ledger,
		metrics:     metrics,
		logger:      logger.With().Str("component", "reconciliation").Logger(),
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountID         string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileAccount compares the cached balance of an account with the credit-positive sum
// of its posted entries. Both are read under the account's balance lock, which every post
// touching the account also holds until it commits.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountID string) (*ReconciliationResult, error) {
	if _, err := uc.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	balances, err := uc.balanceRepo.LockForUpdate(ctx, tx, []string{accountID})
	if err != nil {
		return nil, err
	}
	if len(balances) != 1 {
		return nil, domain.ErrAccountNotFound
	}
	balance := balances[0]

	sums, err := uc.entryRepo.SumPostedByAccountTx(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	calculated := sums.Credits.Sub(sums.Debits)
	difference := balance.Balance.Sub(calculated)

	result := &ReconciliationResult{
		AccountID:         accountID,
		RecordedBalance:   balance.Balance,
		CalculatedBalance: calculated,
		Difference:        difference,
		IsReconciled:      difference.IsZero(),
		LastChecked:       time.Now().UTC(),
	}

	if !result.IsReconciled {
		if uc.metrics != nil {
			uc.metrics.ReconciliationMismatches.Inc()
		}
		uc.logger.Error().
			Str("account_id", accountID).
			Str("recorded", balance.Balance.String()).
			Str("calculated", calculated.String()).
			Msg("balance cache disagrees with posted entries")
	}

	return result, nil
}

// ReconcileAllAccounts reconciles all accounts in the system, page by page.
func (uc *ReconciliationUseCase) ReconcileAllAccounts(ctx context.Context) ([]*ReconciliationResult, error) {
	var results []*ReconciliationResult
	for offset := 0; ; offset += ReconciliationPageSize {
		accounts, err := uc.accountRepo.List(ctx, AccountFilter{Limit: ReconciliationPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}

		for _, account := range accounts {
			result, err := uc.ReconcileAccount(ctx, account.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile account %s: %w", account.ID, err)
			}
			results = append(results, result)
		}

		if len(accounts) < ReconciliationPageSize {
			return results, nil
		}
	}
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	LedgerConsistent   bool
	Totals             []domain.CurrencyTotal
	CheckedAt          time.Time
}

// GenerateReconciliationReport generates a comprehensive reconciliation report
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	consistency, err := uc.ledger.CheckConsistency(ctx)
	if err != nil && !errors.Is(err, ErrInconsistentLedger) {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalAccounts:    len(results),
		Discrepancies:    make([]*ReconciliationResult, 0),
		LedgerConsistent: consistency.Consistent,
		Totals:           consistency.Totals,
		CheckedAt:        time.Now().UTC(),
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	return report, nil
}
