package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/infrastructure/metrics"
)

// PostingPolicy holds configurable posting rules on top of the balance invariant.
type PostingPolicy struct {
	// RequireOffsettingEntries rejects empty and one-sided transactions.
	RequireOffsettingEntries bool
}

// DefaultPostingPolicy returns the policy used when none is configured.
func DefaultPostingPolicy() PostingPolicy {
	return PostingPolicy{RequireOffsettingEntries: true}
}

// TransactionUseCase drives ledger transactions through draft, posted and void.
type TransactionUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	txnRepo     LedgerTransactionRepository
	entryRepo   EntryRepository
	balanceRepo BalanceRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	retrier     Retrier
	cache       BalanceCache
	cacheTTL    time.Duration
	policy      PostingPolicy
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewTransactionUseCase creates a new TransactionUseCase.
func NewTransactionUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	txnRepo LedgerTransactionRepository,
	entryRepo EntryRepository,
	balanceRepo BalanceRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	retrier Retrier,
	policy PostingPolicy,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *TransactionUseCase {
	return &TransactionUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
		entryRepo:   entryRepo,
		balanceRepo: balanceRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		retrier:     retrier,
		policy:      policy,
		metrics:     metrics,
		logger:      logger.With().Str("component", "transaction_manager").Logger(),
	}
}

// WithBalanceCache sets the cache that receives the committed balances of every post.
func (uc *TransactionUseCase) WithBalanceCache(cache BalanceCache, ttl time.Duration) *TransactionUseCase {
	if ttl <= 0 {
		ttl = DefaultBalanceCacheTTL
	}
	uc.cache = cache
	uc.cacheTTL = ttl
	return uc
}

// OpenDraftInput represents input for opening a draft transaction.
type OpenDraftInput struct {
	OrganizationID *string
	Reference      domain.Reference
	OccurredAt     *time.Time
	CreatedBy      string
}

// OpenDraft creates an empty draft transaction.
func (uc *TransactionUseCase) OpenDraft(ctx context.Context, input OpenDraftInput) (*domain.LedgerTransaction, error) {
	if err := input.Reference.Validate(); err != nil {
		return nil, err
	}
	if input.CreatedBy == "" {
		return nil, domain.NewValidationError("created_by is required")
	}
	if input.OrganizationID != nil && *input.OrganizationID == "" {
		return nil, domain.NewValidationError("organization id must not be empty when set")
	}

	now := time.Now().UTC()
	occurredAt := now
	if input.OccurredAt != nil {
		occurredAt = input.OccurredAt.UTC()
	}

	txn := &domain.LedgerTransaction{
		ID:             uc.idGen.Generate(),
		OrganizationID: input.OrganizationID,
		Status:         domain.TransactionStatusDraft,
		Reference:      input.Reference,
		OccurredAt:     occurredAt,
		CreatedBy:      input.CreatedBy,
		CreatedAt:      now,
	}

	err := uc.inTx(ctx, func(tx Transaction) error {
		return uc.txnRepo.Create(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TransactionsOpened.Inc()
	}

	uc.logger.Debug().
		Str("transaction_id", txn.ID).
		Str("reference_type", string(txn.Reference.Kind)).
		Str("reference_id", txn.Reference.ID).
		Msg("draft opened")

	return txn, nil
}

// AppendEntryInput represents input for appending an entry to a draft.
type AppendEntryInput struct {
	TransactionID string
	AccountID     string
	Direction     domain.Direction
	Amount        decimal.Decimal
	Currency      string
	AssetID       *string
}

// AppendEntry adds an entry to a draft. The draft may be transiently unbalanced.
func (uc *TransactionUseCase) AppendEntry(ctx context.Context, input AppendEntryInput) (*domain.Entry, error) {
	if !input.Direction.IsValid() {
		return nil, domain.ErrInvalidDirection
	}
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	currency := domain.NormalizeCurrency(input.Currency)
	if err := domain.ValidateCurrency(currency); err != nil {
		return nil, err
	}

	var entry *domain.Entry

	err := uc.retrier.Retry(ctx, func() error {
		return uc.inTx(ctx, func(tx Transaction) error {
			txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, input.TransactionID)
			if err != nil {
				return err
			}
			if err := txn.RequireDraft(); err != nil {
				return err
			}

			account, err := uc.accountRepo.GetByIDTx(ctx, tx, input.AccountID)
			if err != nil {
				return err
			}
			if err := account.CanAcceptEntries(); err != nil {
				return err
			}
			if account.Currency != currency {
				return domain.ErrCurrencyMismatch
			}

			entry = &domain.Entry{
				ID:            uc.idGen.Generate(),
				TransactionID: txn.ID,
				AccountID:     account.ID,
				Direction:     input.Direction,
				Amount:        input.Amount,
				Currency:      currency,
				AssetID:       input.AssetID,
				CreatedAt:     time.Now().UTC(),
			}

			return uc.entryRepo.Create(ctx, tx, entry)
		})
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesAppended.Inc()
	}

	return entry, nil
}

// RemoveEntry deletes an entry from a draft.
func (uc *TransactionUseCase) RemoveEntry(ctx context.Context, transactionID, entryID string) error {
	err := uc.retrier.Retry(ctx, func() error {
		return uc.inTx(ctx, func(tx Transaction) error {
			txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, transactionID)
			if err != nil {
				return err
			}
			if err := txn.RequireDraft(); err != nil {
				return err
			}

			return uc.entryRepo.Delete(ctx, tx, transactionID, entryID)
		})
	})
	if err != nil {
		return err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesRemoved.Inc()
	}

	return nil
}

// Post validates a draft and, if every currency group nets to zero, atomically marks it posted
// and applies its entries to the balance records of every referenced account. A rejected post
// leaves the draft and its entries untouched.
func (uc *TransactionUseCase) Post(ctx context.Context, transactionID string) (*domain.LedgerTransaction, error) {
	start := time.Now()

	var (
		posted  *domain.LedgerTransaction
		updated []*domain.AccountBalance
		report  *domain.BalanceReport
	)

	err := uc.retrier.Retry(ctx, func() error {
		return uc.inTx(ctx, func(tx Transaction) error {
			txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, transactionID)
			if err != nil {
				return err
			}
			if err := txn.RequireDraft(); err != nil {
				return err
			}

			entries, err := uc.entryRepo.ListByTransactionTx(ctx, tx, txn.ID)
			if err != nil {
				return err
			}

			report, updated, err = uc.commitPosting(ctx, tx, txn, entries)
			if err != nil {
				return err
			}

			posted = txn
			return nil
		})
	})
	if err != nil {
		uc.recordRejection(transactionID, err)
		return nil, err
	}

	uc.cacheBalances(ctx, updated)

	if uc.metrics != nil {
		uc.metrics.TransactionsPosted.Inc()
		uc.metrics.PostEntries.Observe(float64(report.EntryCount))
		uc.metrics.PostDuration.Observe(time.Since(start).Seconds())
	}

	uc.logger.Info().
		Str("transaction_id", posted.ID).
		Int("entries", report.EntryCount).
		Int("accounts", len(updated)).
		Msg("transaction posted")

	return posted, nil
}

// commitPosting runs the balance validator and, on success, applies entries to balance records
// locked in ascending account id order, marks txn posted and enqueues the posted event. It must
// run inside tx with the transaction row already locked. The updated balances are returned in
// account id order.
func (uc *TransactionUseCase) commitPosting(
	ctx context.Context,
	tx Transaction,
	txn *domain.LedgerTransaction,
	entries []*domain.Entry,
) (*domain.BalanceReport, []*domain.AccountBalance, error) {
	report := domain.SummarizeEntries(entries)
	if report.Violation != nil {
		return nil, nil, report.Violation
	}
	if uc.policy.RequireOffsettingEntries && !report.HasOffsettingSides() {
		return nil, nil, domain.ErrMissingOffset
	}

	accountIDs := collectAccountIDs(entries)

	balances, err := uc.balanceRepo.LockForUpdate(ctx, tx, accountIDs)
	if err != nil {
		return nil, nil, err
	}
	if len(balances) != len(accountIDs) {
		return nil, nil, domain.ErrAccountNotFound
	}

	// Account status is read only after the balance locks are held, so a concurrent
	// close or suspend is either fully visible or waits for this post.
	accounts, err := uc.accountRepo.GetByIDs(ctx, tx, accountIDs)
	if err != nil {
		return nil, nil, err
	}
	if len(accounts) != len(accountIDs) {
		return nil, nil, domain.ErrAccountNotFound
	}

	accountMap := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		accountMap[a.ID] = a
	}

	for _, id := range accountIDs {
		if err := accountMap[id].CanAcceptEntries(); err != nil {
			return nil, nil, err
		}
	}

	now := time.Now().UTC()

	next := make(map[string]domain.AccountBalance, len(balances))
	for _, b := range balances {
		next[b.AccountID] = *b
	}

	for _, e := range entries {
		if accountMap[e.AccountID].Currency != e.Currency {
			return nil, nil, domain.ErrCurrencyMismatch
		}
		next[e.AccountID] = next[e.AccountID].Apply(e.Direction, e.Amount, now)
	}

	updated := make([]*domain.AccountBalance, 0, len(accountIDs))
	for _, id := range accountIDs {
		b := next[id]
		if err := uc.balanceRepo.Update(ctx, tx, &b); err != nil {
			return nil, nil, err
		}
		updated = append(updated, &b)
	}

	if err := uc.txnRepo.MarkPosted(ctx, tx, txn.ID, now); err != nil {
		return nil, nil, err
	}
	txn.Status = domain.TransactionStatusPosted
	txn.PostedAt = &now

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   txn.ID,
		AggregateType: domain.AggregateTypeTransaction,
		EventType:     domain.EventTypeTransactionPosted,
		Payload:       domain.TransactionPostedPayload(txn, report),
		CreatedAt:     now,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, nil, err
	}

	return report, updated, nil
}

// Void discards a draft and its entries.
func (uc *TransactionUseCase) Void(ctx context.Context, transactionID string) (*domain.LedgerTransaction, error) {
	var voided *domain.LedgerTransaction

	err := uc.retrier.Retry(ctx, func() error {
		return uc.inTx(ctx, func(tx Transaction) error {
			txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, transactionID)
			if err != nil {
				return err
			}
			if err := txn.RequireDraft(); err != nil {
				return err
			}

			if err := uc.entryRepo.DeleteByTransaction(ctx, tx, txn.ID); err != nil {
				return err
			}

			now := time.Now().UTC()
			if err := uc.txnRepo.MarkVoid(ctx, tx, txn.ID, now); err != nil {
				return err
			}
			txn.Status = domain.TransactionStatusVoid
			txn.VoidedAt = &now

			event := &domain.OutboxEvent{
				ID:            uc.idGen.Generate(),
				AggregateID:   txn.ID,
				AggregateType: domain.AggregateTypeTransaction,
				EventType:     domain.EventTypeTransactionVoided,
				Payload: map[string]any{
					"transaction_id": txn.ID,
					"reference_type": string(txn.Reference.Kind),
					"reference_id":   txn.Reference.ID,
				},
				CreatedAt: now,
			}
			if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
				return err
			}

			voided = txn
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TransactionsVoided.Inc()
	}

	uc.logger.Info().
		Str("transaction_id", voided.ID).
		Msg("transaction voided")

	return voided, nil
}

// ReverseInput represents input for reversing a posted transaction.
type ReverseInput struct {
	TransactionID string
	CreatedBy     string
}

// Reverse posts a compensating transaction whose entries mirror the original with swapped
// directions. A posted transaction can be reversed at most once.
func (uc *TransactionUseCase) Reverse(ctx context.Context, input ReverseInput) (*domain.LedgerTransaction, error) {
	if input.CreatedBy == "" {
		return nil, domain.NewValidationError("created_by is required")
	}

	var (
		reversal *domain.LedgerTransaction
		updated  []*domain.AccountBalance
	)

	err := uc.retrier.Retry(ctx, func() error {
		return uc.inTx(ctx, func(tx Transaction) error {
			original, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, input.TransactionID)
			if err != nil {
				return err
			}
			if original.Status != domain.TransactionStatusPosted {
				return domain.ErrNotPosted
			}

			existing, err := uc.txnRepo.GetReversal(ctx, tx, original.ID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if existing != nil {
				return domain.ErrAlreadyReversed
			}

			originalEntries, err := uc.entryRepo.ListByTransactionTx(ctx, tx, original.ID)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			originalID := original.ID
			txn := &domain.LedgerTransaction{
				ID:             uc.idGen.Generate(),
				OrganizationID: original.OrganizationID,
				Status:         domain.TransactionStatusDraft,
				Reference:      domain.Reference{Kind: domain.ReferenceKindReversal, ID: original.ID},
				OccurredAt:     now,
				CreatedBy:      input.CreatedBy,
				CreatedAt:      now,
				ReversesID:     &originalID,
			}
			if err := uc.txnRepo.Create(ctx, tx, txn); err != nil {
				return err
			}

			mirrored := make([]*domain.Entry, 0, len(originalEntries))
			for _, e := range originalEntries {
				m := e.Mirror(uc.idGen.Generate(), txn.ID, now)
				if err := uc.entryRepo.Create(ctx, tx, m); err != nil {
					return err
				}
				mirrored = append(mirrored, m)
			}

			_, updated, err = uc.commitPosting(ctx, tx, txn, mirrored)
			if err != nil {
				return err
			}

			event := &domain.OutboxEvent{
				ID:            uc.idGen.Generate(),
				AggregateID:   original.ID,
				AggregateType: domain.AggregateTypeTransaction,
				EventType:     domain.EventTypeTransactionReversed,
				Payload: map[string]any{
					"transaction_id":          original.ID,
					"reversal_transaction_id": txn.ID,
				},
				CreatedAt: now,
			}
			if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
				return err
			}

			reversal = txn
			return nil
		})
	})
	if err != nil {
		uc.recordRejection(input.TransactionID, err)
		return nil, err
	}

	uc.cacheBalances(ctx, updated)

	if uc.metrics != nil {
		uc.metrics.TransactionsReversed.Inc()
	}

	uc.logger.Info().
		Str("transaction_id", input.TransactionID).
		Str("reversal_id", reversal.ID).
		Msg("transaction reversed")

	return reversal, nil
}

// Preview runs the balance validator over a transaction's current entries without side effects.
func (uc *TransactionUseCase) Preview(ctx context.Context, transactionID string) (*domain.BalanceReport, error) {
	if _, err := uc.txnRepo.GetByID(ctx, transactionID); err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	return domain.SummarizeEntries(entries), nil
}

// GetTransaction retrieves a ledger transaction by ID.
func (uc *TransactionUseCase) GetTransaction(ctx context.Context, id string) (*domain.LedgerTransaction, error) {
	return uc.txnRepo.GetByID(ctx, id)
}

// ListTransactionsByReference lists the transactions recorded for one business reference.
func (uc *TransactionUseCase) ListTransactionsByReference(ctx context.Context, ref domain.Reference) ([]*domain.LedgerTransaction, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return uc.txnRepo.ListByReference(ctx, ref)
}

// inTx runs fn in a unit of work bounded by DefaultTransactionTimeout, committing on success.
func (uc *TransactionUseCase) inTx(ctx context.Context, fn func(tx Transaction) error) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// cacheBalances writes committed balances through to the cache. The cache keeps the highest
// version it has seen, so a reader filling it with an older row cannot overwrite these. A
// balance that cannot be written is dropped from the cache instead.
func (uc *TransactionUseCase) cacheBalances(ctx context.Context, balances []*domain.AccountBalance) {
	if uc.cache == nil {
		return
	}

	for _, b := range balances {
		err := uc.cache.Set(ctx, b, uc.cacheTTL)
		if err == nil {
			continue
		}
		uc.logger.Warn().Err(err).Str("account_id", b.AccountID).Msg("balance cache write-through failed")

		if err := uc.cache.Invalidate(ctx, b.AccountID); err != nil {
			uc.logger.Error().Err(err).Str("account_id", b.AccountID).Msg("balance cache invalidation failed, entry may be stale until ttl")
		}
	}
}

func (uc *TransactionUseCase) recordRejection(transactionID string, err error) {
	kind := domain.ErrorKind(err)

	if uc.metrics != nil {
		uc.metrics.PostRejections.WithLabelValues(kind).Inc()
	}

	var unbalanced *domain.UnbalancedTransactionError
	if errors.As(err, &unbalanced) {
		uc.logger.Warn().
			Str("transaction_id", transactionID).
			Str("currency", unbalanced.Currency).
			Str("residual", unbalanced.Residual.String()).
			Msg("post rejected: unbalanced")
		return
	}

	uc.logger.Warn().
		Err(err).
		Str("transaction_id", transactionID).
		Str("error_type", kind).
		Msg("post rejected")
}

// collectAccountIDs returns the distinct account ids of entries in ascending order.
func collectAccountIDs(entries []*domain.Entry) []string {
	seen := make(map[string]bool)

	var ids []string
	for _, e := range entries {
		if !seen[e.AccountID] {
			seen[e.AccountID] = true
			ids = append(ids, e.AccountID)
		}
	}

	sort.Strings(ids)

	return ids
}
