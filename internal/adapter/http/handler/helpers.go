package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/iho/ledgerengine/internal/adapter/http/dto"
	"github.com/iho/ledgerengine/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeErrorResponse(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp dto.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// writeDomainError writes err with the status, kind and structured details it maps to.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeErrorResponse(w, mapDomainError(err), dto.ErrorResponse{
		Error:   message,
		Code:    domain.ErrorKind(err),
		Message: err.Error(),
		Details: errorDetails(err),
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnbalanced):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAccountClosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNonZeroBalance):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorDetails(err error) map[string]any {
	var unbalanced *domain.UnbalancedTransactionError
	if errors.As(err, &unbalanced) {
		return map[string]any{
			"currency": unbalanced.Currency,
			"residual": unbalanced.Residual.String(),
		}
	}

	var closed *domain.AccountClosedError
	if errors.As(err, &closed) {
		return map[string]any{"account_id": closed.AccountID}
	}

	var nonZero *domain.NonZeroBalanceError
	if errors.As(err, &nonZero) {
		return map[string]any{
			"account_id": nonZero.AccountID,
			"balance":    nonZero.Balance.String(),
		}
	}

	return nil
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}
