/*
errors.go - Centralized error types for the rent engine

ERROR CATEGORIES:
  1. Validation errors - lease or payment input the caller must fix
  2. Lookup errors - referenced rows that do not exist
  3. Conflict errors - duplicate periods, recording a paid period again
  4. Store errors - the backing store is missing or failed

Read paths (status, cash flow, payment lists) never surface store errors
to callers; they degrade to empty/default results. Write paths always
return them.
*/
package rent

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidLease is returned when a lease violates generation preconditions.
	ErrInvalidLease = errors.New("invalid lease")

	// ErrUnsupportedFrequency is returned for quarterly and annual leases.
	ErrUnsupportedFrequency = errors.New("unsupported payment frequency")

	// ErrInvalidPayment is returned when a payment record is malformed.
	ErrInvalidPayment = errors.New("invalid payment")

	// ErrPaymentNotFound is returned when a payment row does not exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrTenantNotFound is returned when a tenant row does not exist.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrPropertyNotFound is returned when a property row does not exist.
	ErrPropertyNotFound = errors.New("property not found")

	// ErrTenantExists is returned when creating a tenant whose ID is taken.
	ErrTenantExists = errors.New("tenant already exists")

	// ErrAlreadyPaid is returned when recording a payment on a paid period.
	// Paid periods cannot be reverted.
	ErrAlreadyPaid = errors.New("payment already recorded")

	// ErrDuplicatePeriod is returned when a period for the same tenant and
	// start date already exists.
	ErrDuplicatePeriod = errors.New("duplicate billing period")

	// ErrStoreUnavailable is returned by writes when the backing tables
	// are missing.
	ErrStoreUnavailable = errors.New("payment store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// LeaseValidationError names the offending lease field.
type LeaseValidationError struct {
	Field  string
	Reason string
}

func (e *LeaseValidationError) Error() string {
	return fmt.Sprintf("invalid lease: %s %s", e.Field, e.Reason)
}

func (e *LeaseValidationError) Unwrap() error { return ErrInvalidLease }

// WriteError wraps a failed gateway write with the operation name.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *WriteError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrTenantNotFound) ||
		errors.Is(err, ErrPropertyNotFound)
}

// IsClientError returns true if the caller sent invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidLease) ||
		errors.Is(err, ErrInvalidPayment) ||
		errors.Is(err, ErrUnsupportedFrequency)
}

// IsConflict returns true if the write clashed with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicatePeriod) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrTenantExists)
}

// IsRetryable returns false for every domain error. Anything else coming
// out of a store (timeouts, lock contention, dropped connections) may
// succeed on a second attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !IsNotFound(err) && !IsClientError(err) && !IsConflict(err) &&
		!errors.Is(err, ErrStoreUnavailable)
}
