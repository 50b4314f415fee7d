// Package memory is an in-process implementation of the ledger repositories. It honours the
// same unit-of-work and locking contract as the postgres adapter: writes are staged on a Tx and
// applied atomically on Commit, and row locks are held until the Tx ends.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iho/ledgerengine/internal/domain"
	"github.com/iho/ledgerengine/internal/usecase"
)

// DefaultLockTimeout bounds how long a Tx waits for a row lock.
const DefaultLockTimeout = 5 * time.Second

var errTxClosed = errors.New("memory: transaction already closed")

// Store holds committed ledger state.
type Store struct {
	mu sync.RWMutex

	accounts  map[string]*domain.Account
	codes     map[string]string
	txns      map[string]*domain.LedgerTransaction
	reversals map[string]string
	entries   map[string]*domain.Entry
	byTxn     map[string][]string
	byAccount map[string][]string
	balances  map[string]*domain.AccountBalance
	outbox    map[string]*domain.OutboxEvent
	outboxSeq []string

	locks       *lockTable
	lockTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets how long a Tx waits for a row lock before failing with a
// concurrency conflict.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = d
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		accounts:    make(map[string]*domain.Account),
		codes:       make(map[string]string),
		txns:        make(map[string]*domain.LedgerTransaction),
		reversals:   make(map[string]string),
		entries:     make(map[string]*domain.Entry),
		byTxn:       make(map[string][]string),
		byAccount:   make(map[string][]string),
		balances:    make(map[string]*domain.AccountBalance),
		outbox:      make(map[string]*domain.OutboxEvent),
		locks:       newLockTable(),
		lockTimeout: DefaultLockTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new unit of work.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Tx{
		store: m.store,
		held:  make(map[string]bool),
	}, nil
}

// Tx is a unit of work over a Store.
type Tx struct {
	store  *Store
	mu     sync.Mutex
	held   map[string]bool
	order  []string
	ops    []func(s *Store)
	staged map[string]bool
	done   bool
}

// Commit applies all staged writes atomically and releases held locks.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return errTxClosed
	}
	t.done = true

	t.store.mu.Lock()
	for _, op := range t.ops {
		op(t.store)
	}
	t.store.mu.Unlock()

	t.releaseLocked()
	return nil
}

// Rollback discards staged writes and releases held locks. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true
	t.ops = nil

	t.releaseLocked()
	return nil
}

// lock acquires the named lock for the lifetime of the Tx. Locks are reentrant per Tx.
func (t *Tx) lock(ctx context.Context, op, key string) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return errTxClosed
	}
	if t.held[key] {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.store.locks.acquire(ctx, key, t.store.lockTimeout); err != nil {
		return &domain.ConcurrencyConflictError{Op: op, Err: err}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		t.store.locks.release(key)
		return errTxClosed
	}
	t.held[key] = true
	t.order = append(t.order, key)

	return nil
}

func (t *Tx) stage(op func(s *Store)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return errTxClosed
	}
	t.ops = append(t.ops, op)

	return nil
}

// markStaged records that key will exist once the Tx commits.
func (t *Tx) markStaged(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.staged == nil {
		t.staged = make(map[string]bool)
	}
	t.staged[key] = true
}

func (t *Tx) isStaged(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.staged[key]
}

func (t *Tx) releaseLocked() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.store.locks.release(t.order[i])
	}
	t.order = nil
	t.held = nil
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok || mt == nil {
		return nil, errors.New("memory: transaction was not started by this store")
	}
	return mt, nil
}

// lockTable is a set of named binary semaphores.
type lockTable struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[string]chan struct{})}
}

func (l *lockTable) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *lockTable) acquire(ctx context.Context, key string, timeout time.Duration) error {
	ch := l.slot(key)

	select {
	case ch <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errLockTimeout
	}
}

func (l *lockTable) release(key string) {
	<-l.slot(key)
}

var (
	errLockTimeout = errors.New("lock wait timeout")
	errNotLocked   = errors.New("balance record is not locked by this transaction")
)

func txnLockKey(id string) string     { return "txn:" + id }
func balanceLockKey(id string) string { return "balance:" + id }
func codeKey(owner domain.Owner, code string) string {
	return owner.Key() + "/" + code
}
