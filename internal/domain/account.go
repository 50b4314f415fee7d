package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the accounting classification of an account.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

var validAccountTypes = map[AccountType]bool{
	AccountTypeAsset:     true,
	AccountTypeLiability: true,
	AccountTypeEquity:    true,
	AccountTypeRevenue:   true,
	AccountTypeExpense:   true,
}

// IsValid checks if the type is one of the five account classes.
func (t AccountType) IsValid() bool {
	return validAccountTypes[t]
}

// NormalSide returns the direction that increases an account of this type.
func (t AccountType) NormalSide() Direction {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return DirectionDebit
	default:
		return DirectionCredit
	}
}

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusOpen      AccountStatus = "open"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusClosed    AccountStatus = "closed"
)

// CanTransitionTo reports whether the status change is allowed. Closed is terminal.
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	switch s {
	case AccountStatusOpen:
		return next == AccountStatusSuspended || next == AccountStatusClosed
	case AccountStatusSuspended:
		return next == AccountStatusOpen || next == AccountStatusClosed
	default:
		return false
	}
}

// OwnerKind identifies who owns an account.
type OwnerKind string

const (
	OwnerKindUser         OwnerKind = "user"
	OwnerKindOrganization OwnerKind = "organization"
)

// Owner is the scope an account belongs to: exactly one user or one organization.
type Owner struct {
	Kind OwnerKind
	ID   string
}

// Validate checks the owner reference.
func (o Owner) Validate() error {
	if o.Kind != OwnerKindUser && o.Kind != OwnerKindOrganization {
		return NewValidationError("owner kind must be user or organization, got %q", o.Kind)
	}
	if o.ID == "" {
		return NewValidationError("owner id is required")
	}
	return nil
}

// Key returns a string that is unique per owner scope.
func (o Owner) Key() string {
	return string(o.Kind) + ":" + o.ID
}

// Account is a typed, currency-scoped ledger bucket.
type Account struct {
	ID        string
	Owner     Owner
	Code      string
	Name      string
	Type      AccountType
	Status    AccountStatus
	Currency  string
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// CanAcceptEntries checks whether new entries may reference the account.
func (a *Account) CanAcceptEntries() error {
	switch a.Status {
	case AccountStatusClosed:
		return &AccountClosedError{AccountID: a.ID}
	case AccountStatusSuspended:
		return ErrAccountSuspended
	}
	return nil
}

// AccountBalance is the cached balance record for one account. Balance is the
// credit-positive net of all posted entries.
type AccountBalance struct {
	AccountID    string
	Currency     string
	Balance      decimal.Decimal
	TotalDebits  decimal.Decimal
	TotalCredits decimal.Decimal
	Version      int64
	UpdatedAt    time.Time
}

// Apply returns a copy of the balance with the entry's effect added.
func (b AccountBalance) Apply(direction Direction, amount decimal.Decimal, at time.Time) AccountBalance {
	switch direction {
	case DirectionDebit:
		b.TotalDebits = b.TotalDebits.Add(amount)
		b.Balance = b.Balance.Sub(amount)
	case DirectionCredit:
		b.TotalCredits = b.TotalCredits.Add(amount)
		b.Balance = b.Balance.Add(amount)
	}
	b.Version++
	b.UpdatedAt = at
	return b
}

// NormalBalance expresses the balance on the normal side of the given account type,
// so a debited asset or a credited revenue account reads positive.
func (b AccountBalance) NormalBalance(t AccountType) decimal.Decimal {
	if t.NormalSide() == DirectionDebit {
		return b.Balance.Neg()
	}
	return b.Balance
}
