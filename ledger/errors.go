/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch on sentinels with errors.Is() and pull detail out of
  structured errors with errors.As().

ERROR CATEGORIES:
  1. Deduction errors - insufficient balance, invalid amounts
  2. Lookup errors - unknown employees or usage events
  3. Reversal errors - double reversal attempts
  4. Rollover errors - per-employee partial failures

Every failure path is an explicit return value; the engine never panics on
business-rule violations and never uses errors for expected control flow
beyond the error return itself.
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when a deduction exceeds the total
	// open remaining across all tranches. The deduction is not committed.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidAmount is returned for zero, negative, or
	// non-multiple-of-half-day amounts, before the store is touched.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrEmployeeNotFound is returned for operations referencing an unknown
	// employee.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrUsageEventNotFound is returned when reversing an unknown event.
	ErrUsageEventNotFound = errors.New("usage event not found")

	// ErrAlreadyReversed is returned when reversing an event twice.
	ErrAlreadyReversed = errors.New("usage event already reversed")

	// ErrTrancheNotFound is returned when a debit references a tranche the
	// store no longer knows. Indicates store corruption, not bad input.
	ErrTrancheNotFound = errors.New("tranche not found")

	// ErrRolloverPartialFailure is returned when one or more employees failed
	// during year-end processing. The batch result carries per-employee
	// outcomes; processing continued for unaffected employees.
	ErrRolloverPartialFailure = errors.New("rollover completed with failures")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports the shortfall of a failed deduction.
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	Requested  Days
	Available  Days
	Shortfall  Days
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: requested %s, available %s, shortfall %s",
		e.EmployeeID, e.Requested, e.Available, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidAmountError reports a rejected usage amount.
type InvalidAmountError struct {
	Amount Days
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %s: %s", e.Amount, e.Reason)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// RolloverError aggregates per-employee failures from a year-end run.
type RolloverError struct {
	FiscalYear int
	Failed     []EmployeeID
}

func (e *RolloverError) Error() string {
	return fmt.Sprintf("rollover to FY%d failed for %d employee(s)", e.FiscalYear, len(e.Failed))
}

func (e *RolloverError) Unwrap() error { return ErrRolloverPartialFailure }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAlreadyReversed)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrUsageEventNotFound) ||
		errors.Is(err, ErrTrancheNotFound)
}
