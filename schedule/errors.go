/*
errors.go - Error types for the schedule engine

ERROR CATEGORIES:
  1. Validation outcomes - NOT errors. The validator returns messages in a
     ValidationResult and never fails.
  2. Operational refusals - an editor or service operation is rejected
     because it would break a structural policy (DeleteRefusedError,
     TransitionError, ScheduleRejectedError).
  3. Precondition failures - programming errors such as a negative contract
     amount reaching the validator (PreconditionError, raised by panic).
  4. Store errors - missing contracts or terms.

USAGE:
  if errors.Is(err, schedule.ErrDeleteRefused) {
      // 409 Conflict, show the refusal reason
  }
*/
package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrContractNotFound is returned when a referenced contract doesn't exist.
	ErrContractNotFound = errors.New("contract not found")

	// ErrTermNotFound is returned when a referenced payment term doesn't exist.
	ErrTermNotFound = errors.New("payment term not found")

	// ErrInvalidTermID is returned when a replacement schedule repeats a term
	// ID or carries one that belongs to no term of the contract.
	ErrInvalidTermID = errors.New("invalid term id")

	// ErrTermIndexOutOfRange is returned by editor operations given a bad position.
	ErrTermIndexOutOfRange = errors.New("term index out of range")

	// ErrDeleteRefused is returned when deleting a term would remove the last
	// contract document while the policy requires one.
	ErrDeleteRefused = errors.New("delete refused")

	// ErrInvalidTransition is returned when a status change fails its guards.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrScheduleRejected is returned when a submitted schedule has blocking errors.
	ErrScheduleRejected = errors.New("schedule rejected")

	// ErrTermRejected is returned when a single term fails inline validation.
	ErrTermRejected = errors.New("payment term rejected")

	// ErrNegativeContractAmount is a precondition failure; upstream validation
	// should make it impossible.
	ErrNegativeContractAmount = errors.New("contract amount is negative")

	// ErrInvalidRules is returned when a rule set contradicts itself.
	ErrInvalidRules = errors.New("invalid rules")

	// ErrDuplicateContractCode is returned when a contract code is already taken.
	ErrDuplicateContractCode = errors.New("contract code already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DeleteRefusedError explains why a term could not be deleted.
type DeleteRefusedError struct {
	Index  int
	TermID TermID
	Reason string
}

func (e *DeleteRefusedError) Error() string {
	return fmt.Sprintf("cannot delete term %d: %s", e.Index+1, e.Reason)
}

func (e *DeleteRefusedError) Unwrap() error { return ErrDeleteRefused }

// TransitionError lists every guard a status change failed.
type TransitionError struct {
	From   PaymentStatus
	To     PaymentStatus
	Errors []string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s: %s", e.From, e.To, strings.Join(e.Errors, "; "))
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ScheduleRejectedError carries the validation result that blocked a save.
type ScheduleRejectedError struct {
	Result ValidationResult
}

func (e *ScheduleRejectedError) Error() string {
	return fmt.Sprintf("schedule has %d blocking error(s): %s",
		len(e.Result.Errors), strings.Join(e.Result.Errors, "; "))
}

func (e *ScheduleRejectedError) Unwrap() error { return ErrScheduleRejected }

// TermRejectedError carries inline validation messages for one term.
type TermRejectedError struct {
	Index  int
	Errors []string
}

func (e *TermRejectedError) Error() string {
	return fmt.Sprintf("term %d rejected: %s", e.Index+1, strings.Join(e.Errors, "; "))
}

func (e *TermRejectedError) Unwrap() error { return ErrTermRejected }

// InvalidRulesError names the offending rule field.
type InvalidRulesError struct {
	Field  string
	Reason string
}

func (e *InvalidRulesError) Error() string {
	return fmt.Sprintf("invalid rules: %s %s", e.Field, e.Reason)
}

func (e *InvalidRulesError) Unwrap() error { return ErrInvalidRules }

// PreconditionError signals a programming error. It is raised with panic by
// ValidateSchedule and is never a user-facing message.
type PreconditionError struct {
	Err    error
	Detail string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %v (%s)", e.Err, e.Detail)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrTermIndexOutOfRange) ||
		errors.Is(err, ErrInvalidTermID) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrScheduleRejected) ||
		errors.Is(err, ErrTermRejected) ||
		errors.Is(err, ErrNegativeContractAmount) ||
		errors.Is(err, ErrInvalidRules)
}

// IsConflict returns true if the request was well-formed but refused by policy.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDeleteRefused) ||
		errors.Is(err, ErrDuplicateContractCode)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContractNotFound) ||
		errors.Is(err, ErrTermNotFound)
}
