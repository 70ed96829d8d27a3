/*
errors.go - Centralized error types for the penalty engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Configuration errors - Bad interest-rate data. Fatal; retrying cannot help.
  2. Ledger errors - External refresh failures. Retryable at caller discretion.
  3. Validation errors - Missing linked records, unknown obligations. Surfaced
     immediately, never retried.

  The 300%-of-principal cap is a policy clamp, not a fault: it is applied
  silently inside the calculation and never produces an error.

USAGE:
  Callers classify with the helpers:

    if engine.IsRetryable(err) {
        // schedule another refresh attempt
    }

SEE ALSO:
  - rates.go: Returns RateNotFoundError
  - penalty/service.go: Wraps ledger and validation errors
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRateNotFound is returned when no interest-rate period covers the
	// reference date of a simulated day. Configuration-class: the loaded rate
	// table has a gap.
	ErrRateNotFound = errors.New("interest rate not found")

	// ErrOverlappingRatePeriods is returned by the rate loader when two
	// periods cover the same date. Configuration-class.
	ErrOverlappingRatePeriods = errors.New("overlapping interest rate periods")

	// ErrLedgerUnavailable is returned when the external ledger refresh fails.
	// Retryable at the next invocation; the calculation never substitutes
	// invoice data from a different obligation.
	ErrLedgerUnavailable = errors.New("external ledger unavailable")

	// ErrInvoiceCreateFailed is returned when external fee/invoice creation
	// fails during finalization. The local transaction is rolled back.
	ErrInvoiceCreateFailed = errors.New("external invoice creation failed")

	// ErrMissingInvoice is returned when an obligation has no linked external
	// invoice, which every calculation requires.
	ErrMissingInvoice = errors.New("obligation has no external invoice")

	// ErrObligationNotFound is returned when a referenced obligation doesn't exist.
	ErrObligationNotFound = errors.New("obligation not found")

	// ErrPenaltyNotFound is returned when a referenced penalty doesn't exist.
	ErrPenaltyNotFound = errors.New("penalty not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RateNotFoundError reports the accrual day and the quarter-lagged reference
// date that had no covering rate period.
type RateNotFoundError struct {
	Date      Date
	Reference Date
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("no interest rate for %s (reference date %s)", e.Date, e.Reference)
}

func (e *RateNotFoundError) Unwrap() error {
	return ErrRateNotFound
}

// OverlapError reports the pair of rate periods that collide.
type OverlapError struct {
	First, Second string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("rate periods overlap: %s and %s", e.First, e.Second)
}

func (e *OverlapError) Unwrap() error {
	return ErrOverlappingRatePeriods
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on a later invocation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLedgerUnavailable) ||
		errors.Is(err, ErrInvoiceCreateFailed)
}

// IsConfiguration returns true for rate-table faults that no retry can fix.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrRateNotFound) ||
		errors.Is(err, ErrOverlappingRatePeriods)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingInvoice) ||
		errors.Is(err, ErrObligationNotFound) ||
		errors.Is(err, ErrPenaltyNotFound)
}
