package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/iho/ledgerengine/internal/domain"
)

func TestMapError(t *testing.T) {
	plain := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"lock timeout", &pgconn.PgError{Code: codeLockNotAvailable}, domain.ErrConcurrencyConflict},
		{"deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, domain.ErrConcurrencyConflict},
		{"serialization", &pgconn.PgError{Code: codeSerializationFailure}, domain.ErrConcurrencyConflict},
		{"duplicate code", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintOwnerCode}, domain.ErrDuplicateCode},
		{"second reversal", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintReverses}, domain.ErrAlreadyReversed},
		{"other driver error", plain, plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError("op", tt.err), tt.want)
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	assert.NoError(t, mapError("op", nil))
}

func TestMapErrorUnknownUniqueViolationIsNotRetryable(t *testing.T) {
	err := mapError("op", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "accounts_pkey"})
	assert.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
}
