package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/ledgerengine/internal/domain"
)

// PostgreSQL error codes the ledger reacts to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

const (
	constraintOwnerCode = "accounts_owner_code_key"
	constraintReverses  = "ledger_transactions_reverses_key"
)

// mapError translates driver errors into domain errors. Lock timeouts, deadlocks and
// serialization failures become ConcurrencyConflictError so callers can retry them.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return &domain.ConcurrencyConflictError{Op: op, Err: err}
		case codeUniqueViolation:
			switch pgErr.ConstraintName {
			case constraintOwnerCode:
				return domain.ErrDuplicateCode
			case constraintReverses:
				return domain.ErrAlreadyReversed
			}
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
