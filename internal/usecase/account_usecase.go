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

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	balanceRepo BalanceRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	balanceRepo BalanceRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *AccountUseCase {
	return &AccountUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		balanceRepo: balanceRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		metrics:     metrics,
		logger:      logger.With().Str("component", "account_registry").Logger(),
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	Owner    domain.Owner
	Code     string
	Name     string
	Type     domain.AccountType
	Currency string
	ParentID *string
}

// CreateAccount registers a new open account together with its zero balance record.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if err := input.Owner.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateAccountCode(input.Code); err != nil {
		return nil, err
	}
	if err := domain.ValidateAccountName(input.Name); err != nil {
		return nil, err
	}
	if !input.Type.IsValid() {
		return nil, domain.NewValidationError("unknown account type %q", input.Type)
	}

	currency := domain.NormalizeCurrency(input.Currency)
	if err := domain.ValidateCurrency(currency); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Serialize concurrent creates of the same code before the uniqueness check.
	if err := uc.accountRepo.LockCode(ctx, tx, input.Owner, input.Code); err != nil {
		return nil, err
	}

	existing, err := uc.accountRepo.GetByOwnerAndCode(ctx, tx, input.Owner, input.Code)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateCode
	}

	if input.ParentID != nil {
		if err := uc.validateParent(ctx, tx, *input.ParentID, input.Owner, currency); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:        uc.idGen.Generate(),
		Owner:     input.Owner,
		Code:      input.Code,
		Name:      input.Name,
		Type:      input.Type,
		Status:    domain.AccountStatusOpen,
		Currency:  currency,
		ParentID:  input.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.accountRepo.Create(ctx, tx, account); err != nil {
		return nil, err
	}

	balance := &domain.AccountBalance{
		AccountID:    account.ID,
		Currency:     account.Currency,
		Balance:      decimal.Zero,
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
		UpdatedAt:    now,
	}
	if err := uc.balanceRepo.Create(ctx, tx, balance); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   account.ID,
		AggregateType: domain.AggregateTypeAccount,
		EventType:     domain.EventTypeAccountCreated,
		Payload: map[string]any{
			"account_id": account.ID,
			"owner_kind": string(account.Owner.Kind),
			"owner_id":   account.Owner.ID,
			"code":       account.Code,
			"type":       string(account.Type),
			"currency":   account.Currency,
		},
		CreatedAt: now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountsCreated.Inc()
	}

	uc.logger.Info().
		Str("account_id", account.ID).
		Str("owner", account.Owner.Key()).
		Str("code", account.Code).
		Str("type", string(account.Type)).
		Str("currency", account.Currency).
		Msg("account created")

	return account, nil
}

// validateParent checks that the parent exists in the same owner scope and currency, is not
// closed, and that its ancestor chain is acyclic and within the depth limit.
func (uc *AccountUseCase) validateParent(ctx context.Context, tx Transaction, parentID string, owner domain.Owner, currency string) error {
	parent, err := uc.accountRepo.GetByIDTx(ctx, tx, parentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: parent %s does not exist", domain.ErrInvalidParent, parentID)
		}
		return err
	}

	if parent.Owner != owner {
		return fmt.Errorf("%w: parent belongs to a different owner", domain.ErrInvalidParent)
	}
	if parent.Currency != currency {
		return fmt.Errorf("%w: parent currency %s differs from %s", domain.ErrInvalidParent, parent.Currency, currency)
	}
	if parent.Status == domain.AccountStatusClosed {
		return fmt.Errorf("%w: parent %s is closed", domain.ErrInvalidParent, parentID)
	}

	// The new account sits one level below its parent.
	depth := 2
	visited := map[string]bool{parent.ID: true}
	current := parent

	for current.ParentID != nil {
		depth++
		if depth > domain.MaxHierarchyDepth {
			return fmt.Errorf("%w: hierarchy deeper than %d levels", domain.ErrInvalidParent, domain.MaxHierarchyDepth)
		}

		nextID := *current.ParentID
		if visited[nextID] {
			return fmt.Errorf("%w: ancestor cycle at %s", domain.ErrInvalidParent, nextID)
		}
		visited[nextID] = true

		next, err := uc.accountRepo.GetByIDTx(ctx, tx, nextID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: ancestor %s does not exist", domain.ErrInvalidParent, nextID)
			}
			return err
		}
		current = next
	}

	return nil
}

// GetAccount resolves an account by ID. Closed accounts remain readable.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Owner  *domain.Owner
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	if input.Owner != nil {
		if err := input.Owner.Validate(); err != nil {
			return nil, err
		}
	}

	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)

	return uc.accountRepo.List(ctx, AccountFilter{
		Owner:  input.Owner,
		Limit:  limit,
		Offset: offset,
	})
}

// CloseAccount permanently closes an account whose balance is exactly zero.
func (uc *AccountUseCase) CloseAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.changeStatus(ctx, id, domain.AccountStatusClosed)
}

// SuspendAccount stops an open account from taking part in new entries and posts.
func (uc *AccountUseCase) SuspendAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.changeStatus(ctx, id, domain.AccountStatusSuspended)
}

// ReopenAccount returns a suspended account to open.
func (uc *AccountUseCase) ReopenAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.changeStatus(ctx, id, domain.AccountStatusOpen)
}

// changeStatus runs a status transition under the account's balance lock, the same lock
// posting takes, so a transition never interleaves with a post touching the account.
func (uc *AccountUseCase) changeStatus(ctx context.Context, id string, target domain.AccountStatus) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	balances, err := uc.balanceRepo.LockForUpdate(ctx, tx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(balances) != 1 {
		return nil, domain.ErrAccountNotFound
	}

	account, err := uc.accountRepo.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if !account.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, account.Status, target)
	}

	if target == domain.AccountStatusClosed && !balances[0].Balance.IsZero() {
		return nil, &domain.NonZeroBalanceError{AccountID: id, Balance: balances[0].Balance}
	}

	now := time.Now().UTC()
	if err := uc.accountRepo.UpdateStatus(ctx, tx, id, target, now); err != nil {
		return nil, err
	}

	if target == domain.AccountStatusClosed {
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   id,
			AggregateType: domain.AggregateTypeAccount,
			EventType:     domain.EventTypeAccountClosed,
			Payload: map[string]any{
				"account_id": id,
				"closed_at":  now.Format(time.RFC3339Nano),
			},
			CreatedAt: now,
		}
		if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	account.Status = target
	account.UpdatedAt = now
	if target == domain.AccountStatusClosed {
		account.ClosedAt = &now
	}

	if uc.metrics != nil {
		uc.metrics.AccountOperations.WithLabelValues(string(target)).Inc()
	}

	uc.logger.Info().
		Str("account_id", id).
		Str("status", string(target)).
		Msg("account status changed")

	return account, nil
}
