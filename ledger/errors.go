/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps these onto status codes via the classification
  helpers at the bottom of this file.

ERROR CATEGORIES:
  1. Validation errors - Rejected before anything is written
  2. Reference errors  - Unknown transaction/sale/buyer
  3. Reversal errors   - Already reversed, or a kind that cannot be reversed

USAGE:
  Callers match with errors.Is():

    if errors.Is(err, ledger.ErrAlreadyReversed) { ... }

  Field-level detail travels in *FieldError, matched with errors.As().
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
	// ErrInvalidAmount is returned when an amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrUnknownAccount is returned for an account tag outside the three pools.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrInvalidAccountPair is returned for a transfer whose source and
	// destination pools are the same.
	ErrInvalidAccountPair = errors.New("transfer accounts must differ")

	// ErrAllocationMismatch is returned when a discount's allocations do not
	// sum to its total within Tolerance.
	ErrAllocationMismatch = errors.New("allocation sum does not match discount total")

	// ErrAllocationExceedsDue is returned when an allocation is larger than
	// the addressed buyer's outstanding due at submission time.
	ErrAllocationExceedsDue = errors.New("allocation exceeds buyer's outstanding due")

	// ErrUnknownReference is returned when a sale or buyer referenced by a
	// buyer transfer does not exist.
	ErrUnknownReference = errors.New("unknown sale or buyer reference")

	// ErrNotFound is returned when a transaction id resolves to nothing.
	ErrNotFound = errors.New("transaction not found")

	// ErrAlreadyReversed is returned when reversing a transaction whose
	// reversal flag is already set. Reversal is not idempotent.
	ErrAlreadyReversed = errors.New("transaction already reversed")

	// ErrUnreversibleKind is returned when reversing a buyer transfer.
	// Callers must record a compensating transfer instead.
	ErrUnreversibleKind = errors.New("transaction kind cannot be reversed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry field-level context
// =============================================================================

// FieldError attaches the offending field to a validation failure so the
// UI can render a field-level message.
type FieldError struct {
	Field  string
	Detail string
	Err    error
}

func (e *FieldError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Field, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func fieldErr(field string, err error, detail string) error {
	return &FieldError{Field: field, Detail: detail, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// or a disallowed state transition (HTTP 4xx territory).
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownAccount) ||
		errors.Is(err, ErrInvalidAccountPair) ||
		errors.Is(err, ErrAllocationMismatch) ||
		errors.Is(err, ErrAllocationExceedsDue) ||
		errors.Is(err, ErrAlreadyReversed) ||
		errors.Is(err, ErrUnreversibleKind)
}

// IsNotFound returns true if the error indicates a missing reference.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnknownReference)
}
