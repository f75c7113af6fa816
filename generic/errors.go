/*
errors.go - Centralized error taxonomy for the ledger and integration engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages return the structured errors below; callers classify
  them with errors.Is against the sentinels or with the helpers at the
  bottom of this file.

ERROR CATEGORIES:
  1. Lookup errors      - NotFoundError
  2. Ledger errors      - UnbalancedEntryError
  3. Business rules     - OverpaymentError, OverAllocationError, OverCoverageError,
                          InvalidTransitionError, ValidationError
  4. Uniqueness         - DuplicateKeyError (benign for idempotent handlers)
  5. Storage            - PersistenceError, ErrConcurrentModification

PROPAGATION:
  Every validation error is raised before any mutation of the in-memory
  snapshot, so a failed operation never leaves partial state behind.

SEE ALSO:
  - unit_of_work.go: Wraps store failures in PersistenceError
  - finance/ledger.go, finance/invoice.go: Raise the business-rule errors
  - integration/manager.go: Turns errors into Result values
*/
package generic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced account, invoice, policy,
	// employee or other record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnbalancedEntry is returned when a journal entry's debits and
	// credits differ.
	ErrUnbalancedEntry = errors.New("unbalanced journal entry")

	// ErrOverpayment is returned when a payment exceeds the amount due.
	ErrOverpayment = errors.New("payment exceeds balance due")

	// ErrOverAllocation is returned when revenue shares exceed 100% or the
	// invoice total.
	ErrOverAllocation = errors.New("revenue shares exceed invoice")

	// ErrOverCoverage is returned when insurance usage would exceed the
	// policy limit.
	ErrOverCoverage = errors.New("coverage exceeds policy limit")

	// ErrDuplicateKey is returned when a uniqueness constraint is violated.
	// Idempotent handlers treat it as "already done".
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the current state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrPersistence is returned when the blob store cannot be read or written
	// or a snapshot cannot be decoded.
	ErrPersistence = errors.New("persistence failure")

	// ErrConcurrentModification is returned when a snapshot changed between
	// read and write (stale version token).
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // e.g. "account", "invoice"
	ID   string
}

// NewNotFound is a shorthand for &NotFoundError{Kind: kind, ID: id}.
func NewNotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UnbalancedEntryError carries the totals of the rejected entry.
type UnbalancedEntryError struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("unbalanced journal entry: debits %s != credits %s",
		e.Debits.StringFixed(2), e.Credits.StringFixed(2))
}

func (e *UnbalancedEntryError) Unwrap() error { return ErrUnbalancedEntry }

// OverpaymentError reports a payment larger than what is owed.
type OverpaymentError struct {
	Amount decimal.Decimal
	Due    decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment %s exceeds balance due %s", e.Amount.String(), e.Due.String())
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }

// OverAllocationError reports the totals that broke the revenue share bound.
type OverAllocationError struct {
	TotalPct    decimal.Decimal
	TotalAmount decimal.Decimal
	InvoiceTotal decimal.Decimal
}

func (e *OverAllocationError) Error() string {
	return fmt.Sprintf("revenue shares over-allocated: %s%% / %s of invoice total %s",
		e.TotalPct.String(), e.TotalAmount.String(), e.InvoiceTotal.String())
}

func (e *OverAllocationError) Unwrap() error { return ErrOverAllocation }

// OverCoverageError reports a policy limit breach.
type OverCoverageError struct {
	PolicyID  string
	Limit     decimal.Decimal
	Requested decimal.Decimal
}

func (e *OverCoverageError) Error() string {
	return fmt.Sprintf("policy %s: coverage %s exceeds limit %s",
		e.PolicyID, e.Requested.String(), e.Limit.String())
}

func (e *OverCoverageError) Unwrap() error { return ErrOverCoverage }

// DuplicateKeyError names the violated uniqueness key.
type DuplicateKeyError struct {
	Kind string // e.g. "account number", "leave balance"
	Key  string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s %q", e.Kind, e.Key)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// InvalidTransitionError is raised by status machines.
type InvalidTransitionError struct {
	Kind   string
	From   string
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %s", e.Action, e.Kind, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError describes malformed input.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidation is a shorthand for &ValidationError{Field: field, Message: msg}.
func NewValidation(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PersistenceError wraps a store or codec failure.
type PersistenceError struct {
	Op  string // "read", "decode", "encode", "write"
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for uniqueness and stale-write errors.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateKey) || errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input
// or a business-rule violation.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnbalancedEntry) ||
		errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrOverAllocation) ||
		errors.Is(err, ErrOverCoverage) ||
		errors.Is(err, ErrInvalidTransition)
}
