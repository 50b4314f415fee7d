package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger transaction metrics
	TransactionsOpened   prometheus.Counter
	TransactionsPosted   prometheus.Counter
	TransactionsVoided   prometheus.Counter
	TransactionsReversed prometheus.Counter
	PostDuration         prometheus.Histogram
	PostEntries          prometheus.Histogram
	PostRejections       *prometheus.CounterVec
	PostRetries          prometheus.Counter

	// Entry metrics
	EntriesAppended prometheus.Counter
	EntriesRemoved  prometheus.Counter

	// Account metrics
	AccountsCreated   prometheus.Counter
	AccountOperations *prometheus.CounterVec

	// Balance cache metrics
	BalanceCacheLookups *prometheus.CounterVec

	// Reconciliation metrics
	ReconciliationMismatches prometheus.Counter

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxErrors    prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all Prometheus metrics and registers them on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Ledger transaction metrics
		TransactionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_transactions_opened_total",
			Help: "Total number of draft ledger transactions opened",
		}),
		TransactionsPosted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_transactions_posted_total",
			Help: "Total number of ledger transactions posted",
		}),
		TransactionsVoided: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_transactions_voided_total",
			Help: "Total number of draft ledger transactions voided",
		}),
		TransactionsReversed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_transactions_reversed_total",
			Help: "Total number of posted ledger transactions reversed",
		}),
		PostDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_post_duration_seconds",
			Help:    "Duration of post operations including retries",
			Buckets: prometheus.DefBuckets,
		}),
		PostEntries: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_post_entries",
			Help:    "Number of entries per posted transaction",
			Buckets: []float64{2, 3, 4, 6, 8, 16, 32, 64, 128},
		}),
		PostRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_post_rejections_total",
				Help: "Total number of rejected posts by error kind",
			},
			[]string{"error_type"},
		),
		PostRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_post_retries_total",
			Help: "Total number of post attempts retried after a concurrency conflict",
		}),

		// Entry metrics
		EntriesAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_entries_appended_total",
			Help: "Total number of entries appended to drafts",
		}),
		EntriesRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_entries_removed_total",
			Help: "Total number of entries removed from drafts",
		}),

		// Account metrics
		AccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_accounts_created_total",
			Help: "Total number of accounts created",
		}),
		AccountOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_account_operations_total",
				Help: "Total account lifecycle operations by type",
			},
			[]string{"operation"},
		),

		// Balance cache metrics
		BalanceCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_balance_cache_lookups_total",
				Help: "Balance cache lookups by result",
			},
			[]string{"result"},
		),

		// Reconciliation metrics
		ReconciliationMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_reconciliation_mismatches_total",
			Help: "Total number of accounts whose cached balance disagreed with posted entries",
		}),

		// Outbox metrics
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_outbox_published_total",
			Help: "Total number of outbox events published",
		}),
		OutboxErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_outbox_errors_total",
			Help: "Total number of outbox publish failures",
		}),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}
