package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

// CreateAccountRequest represents a request to create an account.
type CreateAccountRequest struct {
	OwnerKind string  `json:"owner_kind"`
	OwnerID   string  `json:"owner_id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Currency  string  `json:"currency"`
	ParentID  *string `json:"parent_id,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		Owner:    domain.Owner{Kind: domain.OwnerKind(r.OwnerKind), ID: r.OwnerID},
		Code:     r.Code,
		Name:     r.Name,
		Type:     domain.AccountType(r.Type),
		Currency: r.Currency,
		ParentID: r.ParentID,
	}
}

// OpenTransactionRequest represents a request to open a draft ledger transaction.
type OpenTransactionRequest struct {
	OrganizationID *string    `json:"organization_id,omitempty"`
	ReferenceType  string     `json:"reference_type"`
	ReferenceID    string     `json:"reference_id"`
	OccurredAt     *time.Time `json:"occurred_at,omitempty"`
	CreatedBy      string     `json:"created_by"`
}

// ToUseCaseInput converts to use case input.
func (r *OpenTransactionRequest) ToUseCaseInput() usecase.OpenDraftInput {
	return usecase.OpenDraftInput{
		OrganizationID: r.OrganizationID,
		Reference: domain.Reference{
			Kind: domain.ReferenceKind(r.ReferenceType),
			ID:   r.ReferenceID,
		},
		OccurredAt: r.OccurredAt,
		CreatedBy:  r.CreatedBy,
	}
}

// AppendEntryRequest represents a request to add an entry to a draft.
type AppendEntryRequest struct {
	AccountID string  `json:"account_id"`
	Direction string  `json:"direction"`
	Amount    string  `json:"amount"`
	Currency  string  `json:"currency"`
	AssetID   *string `json:"asset_id,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *AppendEntryRequest) ToUseCaseInput(transactionID string) (usecase.AppendEntryInput, error) {
	if len(r.Amount) > domain.MaxAmountLength {
		return usecase.AppendEntryInput{}, domain.NewValidationError("amount exceeds %d characters", domain.MaxAmountLength)
	}

	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return usecase.AppendEntryInput{}, err
	}

	return usecase.AppendEntryInput{
		TransactionID: transactionID,
		AccountID:     r.AccountID,
		Direction:     domain.Direction(r.Direction),
		Amount:        amount,
		Currency:      r.Currency,
		AssetID:       r.AssetID,
	}, nil
}

// ReverseTransactionRequest represents a request to reverse a posted transaction.
type ReverseTransactionRequest struct {
	CreatedBy string `json:"created_by"`
}

// ToUseCaseInput converts to use case input.
func (r *ReverseTransactionRequest) ToUseCaseInput(transactionID string) usecase.ReverseInput {
	return usecase.ReverseInput{
		TransactionID: transactionID,
		CreatedBy:     r.CreatedBy,
	}
}
