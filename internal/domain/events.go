package domain

import "time"

// Event types
const (
	EventTypeAccountCreated      = "account.created"
	EventTypeAccountClosed       = "account.closed"
	EventTypeTransactionPosted   = "ledger_transaction.posted"
	EventTypeTransactionVoided   = "ledger_transaction.voided"
	EventTypeTransactionReversed = "ledger_transaction.reversed"
)

// Aggregate types
const (
	AggregateTypeAccount     = "account"
	AggregateTypeTransaction = "ledger_transaction"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TransactionPostedPayload builds the payload of a posted event.
func TransactionPostedPayload(txn *LedgerTransaction, report *BalanceReport) map[string]any {
	totals := make([]map[string]any, 0, len(report.Totals))
	for _, t := range report.Totals {
		totals = append(totals, map[string]any{
			"currency": t.Currency,
			"amount":   t.Debits.String(),
		})
	}

	payload := map[string]any{
		"transaction_id": txn.ID,
		"reference_type": string(txn.Reference.Kind),
		"reference_id":   txn.Reference.ID,
		"occurred_at":    txn.OccurredAt.Format(time.RFC3339Nano),
		"entry_count":    report.EntryCount,
		"totals":         totals,
	}
	if txn.ReversesID != nil {
		payload["reverses_transaction_id"] = *txn.ReversesID
	}
	return payload
}
