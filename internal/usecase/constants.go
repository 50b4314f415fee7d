package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultBalanceCacheTTL bounds how long a cached balance may be served.
	DefaultBalanceCacheTTL = 5 * time.Second

	// ReconciliationPageSize is how many accounts a full reconciliation loads per page.
	ReconciliationPageSize = 500
)
