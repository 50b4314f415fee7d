package dto

import (
	"time"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        string     `json:"id"`
	OwnerKind string     `json:"owner_kind"`
	OwnerID   string     `json:"owner_id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	Currency  string     `json:"currency"`
	ParentID  *string    `json:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		OwnerKind: string(a.Owner.Kind),
		OwnerID:   a.Owner.ID,
		Code:      a.Code,
		Name:      a.Name,
		Type:      string(a.Type),
		Status:    string(a.Status),
		Currency:  a.Currency,
		ParentID:  a.ParentID,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
		ClosedAt:  a.ClosedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse is a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// BalanceResponse represents the cached balance of an account.
type BalanceResponse struct {
	AccountID     string    `json:"account_id"`
	Currency      string    `json:"currency"`
	Balance       string    `json:"balance"`
	NormalBalance string    `json:"normal_balance"`
	TotalDebits   string    `json:"total_debits"`
	TotalCredits  string    `json:"total_credits"`
	Version       int64     `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BalanceFromView converts a balance view to response.
func BalanceFromView(v *usecase.AccountBalanceView) *BalanceResponse {
	return &BalanceResponse{
		AccountID:     v.Balance.AccountID,
		Currency:      v.Balance.Currency,
		Balance:       v.Balance.Balance.String(),
		NormalBalance: v.NormalBalance.String(),
		TotalDebits:   v.Balance.TotalDebits.String(),
		TotalCredits:  v.Balance.TotalCredits.String(),
		Version:       v.Balance.Version,
		UpdatedAt:     v.Balance.UpdatedAt,
	}
}

// TransactionResponse represents a ledger transaction in API responses.
type TransactionResponse struct {
	ID                    string           `json:"id"`
	OrganizationID        *string          `json:"organization_id,omitempty"`
	Status                string           `json:"status"`
	ReferenceType         string           `json:"reference_type"`
	ReferenceID           string           `json:"reference_id"`
	OccurredAt            time.Time        `json:"occurred_at"`
	CreatedBy             string           `json:"created_by"`
	CreatedAt             time.Time        `json:"created_at"`
	PostedAt              *time.Time       `json:"posted_at,omitempty"`
	VoidedAt              *time.Time       `json:"voided_at,omitempty"`
	ReversesTransactionID *string          `json:"reverses_transaction_id,omitempty"`
	Entries               []*EntryResponse `json:"entries,omitempty"`
}

// TransactionFromDomain converts domain transaction to response.
func TransactionFromDomain(t *domain.LedgerTransaction) *TransactionResponse {
	return &TransactionResponse{
		ID:                    t.ID,
		OrganizationID:        t.OrganizationID,
		Status:                string(t.Status),
		ReferenceType:         string(t.Reference.Kind),
		ReferenceID:           t.Reference.ID,
		OccurredAt:            t.OccurredAt,
		CreatedBy:             t.CreatedBy,
		CreatedAt:             t.CreatedAt,
		PostedAt:              t.PostedAt,
		VoidedAt:              t.VoidedAt,
		ReversesTransactionID: t.ReversesID,
	}
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txns []*domain.LedgerTransaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txns))
	for i, t := range txns {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// EntryResponse represents an entry in API responses.
type EntryResponse struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Direction     string    `json:"direction"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	AssetID       *string   `json:"asset_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// EntryFromDomain converts domain entry to response.
func EntryFromDomain(e *domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		AccountID:     e.AccountID,
		Direction:     string(e.Direction),
		Amount:        e.Amount.String(),
		Currency:      e.Currency,
		AssetID:       e.AssetID,
		CreatedAt:     e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.Entry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// CurrencyTotalResponse is the debit/credit sum of one currency.
type CurrencyTotalResponse struct {
	Currency string `json:"currency"`
	Debits   string `json:"debits"`
	Credits  string `json:"credits"`
	Net      string `json:"net"`
}

func totalsFromDomain(totals []domain.CurrencyTotal) []CurrencyTotalResponse {
	result := make([]CurrencyTotalResponse, len(totals))
	for i, t := range totals {
		result[i] = CurrencyTotalResponse{
			Currency: t.Currency,
			Debits:   t.Debits.String(),
			Credits:  t.Credits.String(),
			Net:      t.Net().String(),
		}
	}
	return result
}

// UnbalancedResponse describes the first currency that does not net to zero.
type UnbalancedResponse struct {
	Currency string `json:"currency"`
	Residual string `json:"residual"`
}

// BalanceReportResponse is the validator's view of a draft.
type BalanceReportResponse struct {
	Balanced    bool                    `json:"balanced"`
	EntryCount  int                     `json:"entry_count"`
	DebitCount  int                     `json:"debit_count"`
	CreditCount int                     `json:"credit_count"`
	Totals      []CurrencyTotalResponse `json:"totals"`
	Violation   *UnbalancedResponse     `json:"violation,omitempty"`
}

// BalanceReportFromDomain converts a balance report to response.
func BalanceReportFromDomain(r *domain.BalanceReport) *BalanceReportResponse {
	resp := &BalanceReportResponse{
		Balanced:    r.Balanced(),
		EntryCount:  r.EntryCount,
		DebitCount:  r.DebitCount,
		CreditCount: r.CreditCount,
		Totals:      totalsFromDomain(r.Totals),
	}
	if r.Violation != nil {
		resp.Violation = &UnbalancedResponse{Currency: r.Violation.Currency, Residual: r.Violation.Residual.String()}
	}
	return resp
}

// ConsistencyResponse reports the ledger-wide trial balance.
type ConsistencyResponse struct {
	Consistent bool                    `json:"consistent"`
	Totals     []CurrencyTotalResponse `json:"totals"`
	CheckedAt  time.Time               `json:"checked_at"`
}

// ConsistencyFromReport converts a consistency report to response.
func ConsistencyFromReport(r *usecase.ConsistencyReport) *ConsistencyResponse {
	return &ConsistencyResponse{
		Consistent: r.Consistent,
		Totals:     totalsFromDomain(r.Totals),
		CheckedAt:  r.CheckedAt,
	}
}

// ReconciliationResponse compares an account's cached balance with its entries.
type ReconciliationResponse struct {
	AccountID         string    `json:"account_id"`
	RecordedBalance   string    `json:"recorded_balance"`
	CalculatedBalance string    `json:"calculated_balance"`
	Difference        string    `json:"difference"`
	Reconciled        bool      `json:"reconciled"`
	CheckedAt         time.Time `json:"checked_at"`
}

// ReconciliationFromResult converts a reconciliation result to response.
func ReconciliationFromResult(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountID:         r.AccountID,
		RecordedBalance:   r.RecordedBalance.String(),
		CalculatedBalance: r.CalculatedBalance.String(),
		Difference:        r.Difference.String(),
		Reconciled:        r.IsReconciled,
		CheckedAt:         r.LastChecked,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ReconciliationReportResponse summarizes reconciliation across all accounts.
type ReconciliationReportResponse struct {
	TotalAccounts      int                       `json:"total_accounts"`
	ReconciledAccounts int                       `json:"reconciled_accounts"`
	Discrepancies      []*ReconciliationResponse `json:"discrepancies"`
	LedgerConsistent   bool                      `json:"ledger_consistent"`
	Totals             []CurrencyTotalResponse   `json:"totals"`
	CheckedAt          time.Time                 `json:"checked_at"`
}

// ReconciliationReportFromDomain converts a reconciliation report to response.
func ReconciliationReportFromDomain(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	discrepancies := make([]*ReconciliationResponse, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		discrepancies[i] = ReconciliationFromResult(d)
	}

	return &ReconciliationReportResponse{
		TotalAccounts:      r.TotalAccounts,
		ReconciledAccounts: r.ReconciledAccounts,
		Discrepancies:      discrepancies,
		LedgerConsistent:   r.LedgerConsistent,
		Totals:             totalsFromDomain(r.Totals),
		CheckedAt:          r.CheckedAt,
	}
}
