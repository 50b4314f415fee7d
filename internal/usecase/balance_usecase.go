package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/infrastructure/metrics"
)

// BalanceUseCase serves account balances, optionally through a read-through cache.
type BalanceUseCase struct {
	accountRepo AccountRepository
	balanceRepo BalanceRepository
	cache       BalanceCache
	cacheTTL    time.Duration
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewBalanceUseCase creates a new BalanceUseCase. cache may be nil.
func NewBalanceUseCase(
	accountRepo AccountRepository,
	balanceRepo BalanceRepository,
	cache BalanceCache,
	cacheTTL time.Duration,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *BalanceUseCase {
	if cacheTTL <= 0 {
		cacheTTL = DefaultBalanceCacheTTL
	}

	return &BalanceUseCase{
		accountRepo: accountRepo,
		balanceRepo: balanceRepo,
		cache:       cache,
		cacheTTL:    cacheTTL,
		metrics:     metrics,
		logger:      logger.With().Str("component", "balance").Logger(),
	}
}

// AccountBalanceView is an account's balance record with its normal-side reading.
type AccountBalanceView struct {
	Account       *domain.Account
	Balance       *domain.AccountBalance
	NormalBalance decimal.Decimal
}

// GetAccountBalance returns the cached balance of an account.
func (uc *BalanceUseCase) GetAccountBalance(ctx context.Context, accountID string) (*AccountBalanceView, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	balance, err := uc.lookup(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &AccountBalanceView{
		Account:       account,
		Balance:       balance,
		NormalBalance: balance.NormalBalance(account.Type),
	}, nil
}

func (uc *BalanceUseCase) lookup(ctx context.Context, accountID string) (*domain.AccountBalance, error) {
	if uc.cache == nil {
		return uc.balanceRepo.GetByAccountID(ctx, accountID)
	}

	cached, err := uc.cache.Get(ctx, accountID)
	if err != nil {
		uc.logger.Warn().Err(err).Str("account_id", accountID).Msg("balance cache read failed")
	}
	if cached != nil {
		uc.observe("hit")
		return cached, nil
	}
	uc.observe("miss")

	balance, err := uc.balanceRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := uc.cache.Set(ctx, balance, uc.cacheTTL); err != nil {
		uc.logger.Warn().Err(err).Str("account_id", accountID).Msg("balance cache write failed")
	}

	return balance, nil
}

func (uc *BalanceUseCase) observe(result string) {
	if uc.metrics != nil {
		uc.metrics.BalanceCacheLookups.WithLabelValues(result).Inc()
	}
}
