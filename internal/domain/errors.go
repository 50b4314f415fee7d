package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error categories. Every error returned by the ledger wraps exactly one of these.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrState               = errors.New("invalid state")
	ErrUnbalanced          = errors.New("transaction is unbalanced")
	ErrAccountClosed       = errors.New("account is closed")
	ErrNonZeroBalance      = errors.New("account balance is not zero")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

var (
	// Account errors
	ErrAccountNotFound   = fmt.Errorf("account %w", ErrNotFound)
	ErrDuplicateCode     = fmt.Errorf("%w: account code already exists in owner scope", ErrValidation)
	ErrInvalidParent     = fmt.Errorf("%w: invalid parent account", ErrValidation)
	ErrAccountSuspended  = fmt.Errorf("%w: account is suspended", ErrState)
	ErrInvalidTransition = fmt.Errorf("%w: account status transition not allowed", ErrState)

	// Transaction errors
	ErrTransactionNotFound = fmt.Errorf("ledger transaction %w", ErrNotFound)
	ErrEntryNotFound       = fmt.Errorf("ledger entry %w", ErrNotFound)
	ErrNotDraft            = fmt.Errorf("%w: ledger transaction is not a draft", ErrState)
	ErrNotPosted           = fmt.Errorf("%w: ledger transaction is not posted", ErrState)
	ErrAlreadyReversed     = fmt.Errorf("%w: ledger transaction already reversed", ErrState)
	ErrMissingOffset       = fmt.Errorf("%w: transaction needs at least one debit and one credit", ErrValidation)

	// Entry errors
	ErrInvalidAmount    = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrCurrencyMismatch = fmt.Errorf("%w: entry currency does not match account currency", ErrValidation)
	ErrInvalidDirection = fmt.Errorf("%w: direction must be debit or credit", ErrValidation)
)

// UnbalancedTransactionError reports the first currency whose entries do not net to zero.
// Residual is Σdebit − Σcredit for that currency.
type UnbalancedTransactionError struct {
	Currency string
	Residual decimal.Decimal
}

func (e *UnbalancedTransactionError) Error() string {
	return fmt.Sprintf("transaction is unbalanced: currency %s residual %s", e.Currency, e.Residual.String())
}

// Is reports category membership.
func (e *UnbalancedTransactionError) Is(target error) bool {
	return target == ErrUnbalanced
}

// AccountClosedError is returned when an entry or posting references a closed account.
type AccountClosedError struct {
	AccountID string
}

func (e *AccountClosedError) Error() string {
	return fmt.Sprintf("account %s is closed", e.AccountID)
}

func (e *AccountClosedError) Is(target error) bool {
	return target == ErrAccountClosed
}

// NonZeroBalanceError is returned when closing an account that still carries a balance.
type NonZeroBalanceError struct {
	AccountID string
	Balance   decimal.Decimal
}

func (e *NonZeroBalanceError) Error() string {
	return fmt.Sprintf("account %s has non-zero balance %s", e.AccountID, e.Balance.String())
}

func (e *NonZeroBalanceError) Is(target error) bool {
	return target == ErrNonZeroBalance
}

// ConcurrencyConflictError wraps lock or version contention. It is the only error that
// is safe to retry automatically.
type ConcurrencyConflictError struct {
	Op  string
	Err error
}

func (e *ConcurrencyConflictError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("concurrency conflict during %s", e.Op)
	}
	return fmt.Sprintf("concurrency conflict during %s: %v", e.Op, e.Err)
}

func (e *ConcurrencyConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

func (e *ConcurrencyConflictError) Unwrap() error {
	return e.Err
}

// NewValidationError builds a validation error with a free-form reason.
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrorKind returns a stable label for the category of err, used for metrics and API codes.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnbalanced):
		return "unbalanced_transaction"
	case errors.Is(err, ErrAccountClosed):
		return "account_closed"
	case errors.Is(err, ErrNonZeroBalance):
		return "non_zero_balance"
	case errors.Is(err, ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrState):
		return "state"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}

// IsRetryable reports whether err may be retried without caller correction.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
