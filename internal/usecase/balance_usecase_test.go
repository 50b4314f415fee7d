package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	redisrepo "github.com/iho/ledgerengine/internal/adapter/repository/redis"
	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
	"github.com/iho/ledgerengine/internal/usecase/mocks"
)

func TestBalanceUseCase_CacheHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountRepo := mocks.NewMockAccountRepository(ctrl)
	balanceRepo := mocks.NewMockBalanceRepository(ctrl)
	cache := mocks.NewMockBalanceCache(ctrl)

	accountRepo.EXPECT().GetByID(gomock.Any(), "acc-1").Return(&domain.Account{
		ID: "acc-1", Type: domain.AccountTypeRevenue, Currency: "USD",
	}, nil)
	cache.EXPECT().Get(gomock.Any(), "acc-1").Return(&domain.AccountBalance{
		AccountID: "acc-1", Currency: "USD", Balance: decimal.NewFromInt(42),
	}, nil)

	uc := usecase.NewBalanceUseCase(accountRepo, balanceRepo, cache, time.Second, nil, zerolog.Nop())

	view, err := uc.GetAccountBalance(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !view.Balance.Balance.Equal(decimal.NewFromInt(42)) {
		t.Errorf("expected balance 42, got %s", view.Balance.Balance)
	}
	if !view.NormalBalance.Equal(decimal.NewFromInt(42)) {
		t.Errorf("expected revenue normal balance 42, got %s", view.NormalBalance)
	}
}

func TestBalanceUseCase_CacheMissFillsCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountRepo := mocks.NewMockAccountRepository(ctrl)
	balanceRepo := mocks.NewMockBalanceRepository(ctrl)
	cache := mocks.NewMockBalanceCache(ctrl)

	stored := &domain.AccountBalance{AccountID: "acc-1", Currency: "USD", Balance: decimal.NewFromInt(-5)}

	accountRepo.EXPECT().GetByID(gomock.Any(), "acc-1").Return(&domain.Account{
		ID: "acc-1", Type: domain.AccountTypeAsset, Currency: "USD",
	}, nil)
	cache.EXPECT().Get(gomock.Any(), "acc-1").Return(nil, nil)
	balanceRepo.EXPECT().GetByAccountID(gomock.Any(), "acc-1").Return(stored, nil)
	cache.EXPECT().Set(gomock.Any(), stored, 3*time.Second).Return(nil)

	uc := usecase.NewBalanceUseCase(accountRepo, balanceRepo, cache, 3*time.Second, nil, zerolog.Nop())

	view, err := uc.GetAccountBalance(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !view.NormalBalance.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected asset normal balance 5, got %s", view.NormalBalance)
	}
}

func TestBalanceUseCase_CacheErrorsFallBackToStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountRepo := mocks.NewMockAccountRepository(ctrl)
	balanceRepo := mocks.NewMockBalanceRepository(ctrl)
	cache := mocks.NewMockBalanceCache(ctrl)

	stored := &domain.AccountBalance{AccountID: "acc-1", Currency: "USD", Balance: decimal.Zero}

	accountRepo.EXPECT().GetByID(gomock.Any(), "acc-1").Return(&domain.Account{ID: "acc-1", Type: domain.AccountTypeAsset}, nil)
	cache.EXPECT().Get(gomock.Any(), "acc-1").Return(nil, errors.New("connection refused"))
	balanceRepo.EXPECT().GetByAccountID(gomock.Any(), "acc-1").Return(stored, nil)
	cache.EXPECT().Set(gomock.Any(), stored, gomock.Any()).Return(errors.New("connection refused"))

	uc := usecase.NewBalanceUseCase(accountRepo, balanceRepo, cache, 0, nil, zerolog.Nop())

	if _, err := uc.GetAccountBalance(context.Background(), "acc-1"); err != nil {
		t.Fatalf("cache failures must not fail reads, got %v", err)
	}
}

func TestBalanceUseCase_UnknownAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountRepo := mocks.NewMockAccountRepository(ctrl)
	balanceRepo := mocks.NewMockBalanceRepository(ctrl)

	accountRepo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, domain.ErrAccountNotFound)

	uc := usecase.NewBalanceUseCase(accountRepo, balanceRepo, nil, 0, nil, zerolog.Nop())

	if _, err := uc.GetAccountBalance(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransactionUseCase_PostWritesBalancesThroughCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	l := newLedger(t)
	a := l.mustAccount(t, "a", domain.AccountTypeAsset, "USD")
	b := l.mustAccount(t, "b", domain.AccountTypeRevenue, "USD")

	written := map[string]*domain.AccountBalance{}
	cache := mocks.NewMockBalanceCache(ctrl)
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), time.Minute).
		DoAndReturn(func(_ context.Context, balance *domain.AccountBalance, _ time.Duration) error {
			written[balance.AccountID] = balance
			return nil
		}).Times(2)
	l.transactions.WithBalanceCache(cache, time.Minute)

	l.mustTransfer(t, a.ID, b.ID, "1", "USD")

	require.Contains(t, written, a.ID)
	require.Contains(t, written, b.ID)
	assert.True(t, written[a.ID].Balance.Equal(decimal.NewFromInt(-1)))
	assert.True(t, written[b.ID].Balance.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, int64(1), written[a.ID].Version)
}

func TestTransactionUseCase_FailedWriteThroughInvalidates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	l := newLedger(t)
	a := l.mustAccount(t, "a", domain.AccountTypeAsset, "USD")
	b := l.mustAccount(t, "b", domain.AccountTypeRevenue, "USD")

	cache := mocks.NewMockBalanceCache(ctrl)
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("connection refused")).Times(2)
	cache.EXPECT().Invalidate(gomock.Any(), a.ID).Return(nil)
	cache.EXPECT().Invalidate(gomock.Any(), b.ID).Return(errors.New("connection refused"))
	l.transactions.WithBalanceCache(cache, 0)

	l.mustTransfer(t, a.ID, b.ID, "1", "USD")
}

// stalledBalanceRepo parks the first balance read after it has fetched the row.
type stalledBalanceRepo struct {
	usecase.BalanceRepository
	once    sync.Once
	fetched chan struct{}
	resume  chan struct{}
}

func (r *stalledBalanceRepo) GetByAccountID(ctx context.Context, accountID string) (*domain.AccountBalance, error) {
	balance, err := r.BalanceRepository.GetByAccountID(ctx, accountID)
	r.once.Do(func() {
		close(r.fetched)
		<-r.resume
	})
	return balance, err
}

func TestBalanceUseCase_SlowCacheFillDoesNotOverwritePost(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := redisrepo.NewBalanceCache(client)

	l := newLedger(t)
	a := l.mustAccount(t, "a", domain.AccountTypeAsset, "USD")
	b := l.mustAccount(t, "b", domain.AccountTypeRevenue, "USD")
	l.transactions.WithBalanceCache(cache, time.Minute)

	stalled := &stalledBalanceRepo{
		BalanceRepository: l.balanceRepo,
		fetched:           make(chan struct{}),
		resume:            make(chan struct{}),
	}
	reader := usecase.NewBalanceUseCase(l.accountRepo, stalled, cache, time.Minute, nil, zerolog.Nop())

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		_, err := reader.GetAccountBalance(ctx, b.ID)
		done <- err
	}()

	<-stalled.fetched
	l.mustTransfer(t, a.ID, b.ID, "100", "USD")
	close(stalled.resume)
	require.NoError(t, <-done)

	view, err := reader.GetAccountBalance(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, view.Balance.Balance.Equal(decimal.NewFromInt(100)), "served %s", view.Balance.Balance)
	assert.Equal(t, int64(1), view.Balance.Version)
}
