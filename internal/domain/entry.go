package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of an entry.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// IsValid checks if the direction is debit or credit.
func (d Direction) IsValid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == DirectionDebit {
		return DirectionCredit
	}
	return DirectionDebit
}

// Entry is one line item of a ledger transaction.
type Entry struct {
	ID            string
	TransactionID string
	AccountID     string
	Direction     Direction
	Amount        decimal.Decimal
	Currency      string
	AssetID       *string
	CreatedAt     time.Time
}

// Signed returns +amount for a debit and -amount for a credit.
func (e *Entry) Signed() decimal.Decimal {
	if e.Direction == DirectionCredit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Mirror returns an entry with the same amount against the same account on the opposite side.
func (e *Entry) Mirror(id, transactionID string, at time.Time) *Entry {
	return &Entry{
		ID:            id,
		TransactionID: transactionID,
		AccountID:     e.AccountID,
		Direction:     e.Direction.Opposite(),
		Amount:        e.Amount,
		Currency:      e.Currency,
		AssetID:       e.AssetID,
		CreatedAt:     at,
	}
}
