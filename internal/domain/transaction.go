package domain

import "time"

// TransactionStatus is the lifecycle state of a ledger transaction.
type TransactionStatus string

const (
	TransactionStatusDraft  TransactionStatus = "draft"
	TransactionStatusPosted TransactionStatus = "posted"
	TransactionStatusVoid   TransactionStatus = "void"
)

// ReferenceKind enumerates the business events a ledger transaction can point back to.
type ReferenceKind string

const (
	ReferenceKindOrder       ReferenceKind = "order"
	ReferenceKindPayment     ReferenceKind = "payment"
	ReferenceKindSettlement  ReferenceKind = "settlement"
	ReferenceKindTaskBilling ReferenceKind = "task_billing"
	ReferenceKindAdjustment  ReferenceKind = "adjustment"
	ReferenceKindReversal    ReferenceKind = "reversal"
	ReferenceKindManual      ReferenceKind = "manual"
)

var validReferenceKinds = map[ReferenceKind]bool{
	ReferenceKindOrder:       true,
	ReferenceKindPayment:     true,
	ReferenceKindSettlement:  true,
	ReferenceKindTaskBilling: true,
	ReferenceKindAdjustment:  true,
	ReferenceKindReversal:    true,
	ReferenceKindManual:      true,
}

// IsValid checks if the kind is known.
func (k ReferenceKind) IsValid() bool {
	return validReferenceKinds[k]
}

// Reference is an opaque pointer to the domain event that caused a transaction.
// The ledger never dereferences it.
type Reference struct {
	Kind ReferenceKind
	ID   string
}

// Validate checks the reference.
func (r Reference) Validate() error {
	if !r.Kind.IsValid() {
		return NewValidationError("unknown reference kind %q", r.Kind)
	}
	if r.ID == "" {
		return NewValidationError("reference id is required")
	}
	return nil
}

// LedgerTransaction groups entries that must jointly balance.
type LedgerTransaction struct {
	ID             string
	OrganizationID *string
	Status         TransactionStatus
	Reference      Reference
	OccurredAt     time.Time
	CreatedBy      string
	CreatedAt      time.Time
	PostedAt       *time.Time
	VoidedAt       *time.Time
	// ReversesID is set on compensating transactions.
	ReversesID *string
}

// IsDraft reports whether entries may still change.
func (t *LedgerTransaction) IsDraft() bool {
	return t.Status == TransactionStatusDraft
}

// RequireDraft returns ErrNotDraft unless the transaction is a draft.
func (t *LedgerTransaction) RequireDraft() error {
	if !t.IsDraft() {
		return ErrNotDraft
	}
	return nil
}
