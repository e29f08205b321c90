package holdings

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinels matched by the typed errors below, for use with errors.Is.
var (
	ErrValidation           = errors.New("validation error")
	ErrPositionNotFound     = errors.New("position not found")
	ErrInsufficientShares   = errors.New("insufficient shares")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrMissingRate          = errors.New("missing rate")
	ErrIncompleteMarketData = errors.New("incomplete market data")
	ErrDuplicateSnapshot    = errors.New("duplicate snapshot")
	ErrNotEnoughSnapshots   = errors.New("not enough snapshots")
)

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PositionNotFoundError is returned when a symbol is not held.
type PositionNotFoundError struct {
	Symbol string
}

func (e *PositionNotFoundError) Error() string {
	return fmt.Sprintf("position %q not found", e.Symbol)
}

func (e *PositionNotFoundError) Is(target error) bool { return target == ErrPositionNotFound }

// InsufficientSharesError is returned when more shares are removed than are held,
// or when a specific lot does not hold enough shares.
type InsufficientSharesError struct {
	Symbol    string
	Requested Quantity
	Held      Quantity
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("cannot remove %v shares of %q: only %v held", e.Requested, e.Symbol, e.Held)
}

func (e *InsufficientSharesError) Is(target error) bool { return target == ErrInsufficientShares }

// InsufficientFundsError is returned when cash cannot cover a debit.
type InsufficientFundsError struct {
	Required  Money
	Available Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient cash: %v required, %v available", e.Required, e.Available)
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// MissingRateError is returned when no usable rate exists between two currencies.
type MissingRateError struct {
	From, To string
	// Stale is set when a rate exists but is older than allowed.
	Stale bool
	AsOf  time.Time
}

func (e *MissingRateError) Error() string {
	if e.Stale {
		return fmt.Sprintf("stale rate %s/%s as of %s", e.From, e.To, e.AsOf.Format(time.RFC3339))
	}
	return fmt.Sprintf("missing rate %s/%s", e.From, e.To)
}

func (e *MissingRateError) Is(target error) bool { return target == ErrMissingRate }

// IncompleteMarketDataError lists every price and currency pair a valuation lacked.
type IncompleteMarketDataError struct {
	Symbols []string
	Rates   []string // as "FROM/TO"
}

func (e *IncompleteMarketDataError) Error() string {
	var parts []string
	if len(e.Symbols) > 0 {
		parts = append(parts, "no price for "+strings.Join(e.Symbols, ", "))
	}
	if len(e.Rates) > 0 {
		parts = append(parts, "no rate for "+strings.Join(e.Rates, ", "))
	}
	return "incomplete market data: " + strings.Join(parts, "; ")
}

func (e *IncompleteMarketDataError) Is(target error) bool { return target == ErrIncompleteMarketData }

// DuplicateSnapshotError is returned when a snapshot already exists at a timestamp.
type DuplicateSnapshotError struct {
	At time.Time
}

func (e *DuplicateSnapshotError) Error() string {
	return fmt.Sprintf("snapshot already recorded at %s", e.At.Format(time.RFC3339))
}

func (e *DuplicateSnapshotError) Is(target error) bool { return target == ErrDuplicateSnapshot }
