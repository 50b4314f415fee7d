package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerengine/internal/adapter/idgen"
	"github.com/iho/ledgerengine/internal/adapter/repository/memory"
	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/infrastructure/retry"
	"github.com/iho/ledgerengine/internal/usecase"
)

// ledger wires every use case over one in-memory store.
type ledger struct {
	store        *memory.Store
	txManager    *memory.TxManager
	accountRepo  *memory.AccountRepository
	txnRepo      *memory.TransactionRepository
	entryRepo    *memory.EntryRepository
	balanceRepo  *memory.BalanceRepository
	outboxRepo   *memory.OutboxRepository
	accounts     *usecase.AccountUseCase
	transactions *usecase.TransactionUseCase
	entries      *usecase.EntryUseCase
	balances     *usecase.BalanceUseCase
	ledgerUC     *usecase.LedgerUseCase
	reconcile    *usecase.ReconciliationUseCase
}

func newLedger(t *testing.T, opts ...memory.Option) *ledger {
	return newLedgerWithPolicy(t, usecase.DefaultPostingPolicy(), opts...)
}

func newLedgerWithPolicy(t *testing.T, policy usecase.PostingPolicy, opts ...memory.Option) *ledger {
	t.Helper()

	store := memory.NewStore(opts...)
	l := &ledger{
		store:       store,
		txManager:   memory.NewTxManager(store),
		accountRepo: memory.NewAccountRepository(store),
		txnRepo:     memory.NewTransactionRepository(store),
		entryRepo:   memory.NewEntryRepository(store),
		balanceRepo: memory.NewBalanceRepository(store),
		outboxRepo:  memory.NewOutboxRepository(store),
	}

	logger := zerolog.Nop()
	ids := idgen.NewULIDGenerator()
	retrier := retry.New(retry.Config{
		MaxRetries:      5,
		InitialInterval: time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		MaxElapsedTime:  5 * time.Second,
	}, logger)

	l.accounts = usecase.NewAccountUseCase(l.txManager, l.accountRepo, l.balanceRepo, l.outboxRepo, ids, nil, logger)
	l.transactions = usecase.NewTransactionUseCase(
		l.txManager, l.accountRepo, l.txnRepo, l.entryRepo, l.balanceRepo, l.outboxRepo,
		ids, retrier, policy, nil, logger,
	)
	l.entries = usecase.NewEntryUseCase(l.txnRepo, l.accountRepo, l.entryRepo)
	l.balances = usecase.NewBalanceUseCase(l.accountRepo, l.balanceRepo, nil, 0, nil, logger)
	l.ledgerUC = usecase.NewLedgerUseCase(memory.NewLedgerRepository(store))
	l.reconcile = usecase.NewReconciliationUseCase(l.txManager, l.accountRepo, l.balanceRepo, l.entryRepo, l.ledgerUC, nil, logger)

	return l
}

var testOwner = domain.Owner{Kind: domain.OwnerKindOrganization, ID: "org-1"}

func (l *ledger) mustAccount(t *testing.T, code string, typ domain.AccountType, currency string) *domain.Account {
	t.Helper()

	acc, err := l.accounts.CreateAccount(context.Background(), usecase.CreateAccountInput{
		Owner:    testOwner,
		Code:     code,
		Name:     code,
		Type:     typ,
		Currency: currency,
	})
	if err != nil {
		t.Fatalf("create account %s: %v", code, err)
	}
	return acc
}

func (l *ledger) mustDraft(t *testing.T) *domain.LedgerTransaction {
	t.Helper()

	txn, err := l.transactions.OpenDraft(context.Background(), usecase.OpenDraftInput{
		Reference: domain.Reference{Kind: domain.ReferenceKindOrder, ID: "ord-1"},
		CreatedBy: "tester",
	})
	if err != nil {
		t.Fatalf("open draft: %v", err)
	}
	return txn
}

func (l *ledger) mustAppend(t *testing.T, txnID, accountID string, direction domain.Direction, amount, currency string) *domain.Entry {
	t.Helper()

	entry, err := l.transactions.AppendEntry(context.Background(), usecase.AppendEntryInput{
		TransactionID: txnID,
		AccountID:     accountID,
		Direction:     direction,
		Amount:        decimal.RequireFromString(amount),
		Currency:      currency,
	})
	if err != nil {
		t.Fatalf("append entry: %v", err)
	}
	return entry
}

// mustTransfer posts a two-entry transaction debiting from and crediting to.
func (l *ledger) mustTransfer(t *testing.T, debitID, creditID, amount, currency string) *domain.LedgerTransaction {
	t.Helper()

	txn := l.mustDraft(t)
	l.mustAppend(t, txn.ID, debitID, domain.DirectionDebit, amount, currency)
	l.mustAppend(t, txn.ID, creditID, domain.DirectionCredit, amount, currency)

	posted, err := l.transactions.Post(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return posted
}

func (l *ledger) balanceOf(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()

	b, err := l.balanceRepo.GetByAccountID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return b.Balance
}
