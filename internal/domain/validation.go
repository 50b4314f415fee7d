package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxAccountCodeLength = 64
	MaxAccountNameLength = 255
	MaxAmountScale       = 8
	MaxEntryAmount       = "1000000000000" // 1 trillion
	MaxAmountLength      = 64
	MaxHierarchyDepth    = 16
)

// Decimal exponents outside this window are rejected before any comparison,
// since comparing rescales both operands to the smaller exponent.
const (
	minAmountExponent = -(MaxAmountScale + 32)
	maxAmountExponent = 32
)

var accountCodeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]*$`)

// Valid currency codes (ISO 4217)
var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CNY": true, "AUD": true, "CAD": true, "CHF": true,
	"SEK": true, "NZD": true, "KRW": true, "SGD": true,
	"NOK": true, "MXN": true, "INR": true, "BRL": true,
	"ZAR": true, "RUB": true, "TRY": true, "HKD": true,
	"NGN": true, "KES": true, "GHS": true, "AED": true,
	"PLN": true, "DKK": true, "CZK": true, "ILS": true,
}

var maxEntryAmount = decimal.RequireFromString(MaxEntryAmount)

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// ValidateCurrency validates currency code
func ValidateCurrency(currency string) error {
	if !validCurrencies[NormalizeCurrency(currency)] {
		return NewValidationError("%s is not a valid ISO 4217 currency code", currency)
	}
	return nil
}

// ValidateAccountCode validates an account code.
func ValidateAccountCode(code string) error {
	if code == "" {
		return NewValidationError("account code cannot be empty")
	}
	if len(code) > MaxAccountCodeLength {
		return NewValidationError("account code exceeds %d characters", MaxAccountCodeLength)
	}
	if !accountCodeRegex.MatchString(code) {
		return NewValidationError("account code %q contains forbidden characters", code)
	}
	return nil
}

// ValidateAccountName validates the optional display name.
func ValidateAccountName(name string) error {
	if len(name) > MaxAccountNameLength {
		return NewValidationError("account name exceeds %d characters", MaxAccountNameLength)
	}
	return nil
}

// ValidateAmount validates an entry amount: strictly positive, bounded, and representable at
// the ledger's working precision.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	if exp := amount.Exponent(); exp < minAmountExponent || exp > maxAmountExponent {
		return fmt.Errorf("%w: exponent %d is out of range", ErrInvalidAmount, exp)
	}

	if amount.GreaterThan(maxEntryAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrInvalidAmount, MaxEntryAmount)
	}

	if !amount.Equal(amount.Truncate(MaxAmountScale)) {
		return fmt.Errorf("%w: at most %d fractional digits are allowed", ErrInvalidAmount, MaxAmountScale)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
