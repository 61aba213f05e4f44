/*
Package schedule provides the payment schedule validation and reconciliation engine.

PURPOSE:
  A contract's total value is split into an ordered list of installments
  ("payment terms"). This package keeps the amount and percentage of every
  term consistent, reconciles the schedule against the contract total, and
  classifies every rule violation as a blocking error or an advisory warning.

KEY CONCEPTS IN THIS FILE (types.go):
  - PaymentTerm: One installment (amount, share, due date, payment status)
  - ContractContext: Read-only contract facts the validator checks against
  - ValidationResult: Errors (block submission) and warnings (advisory)
  - Contract: The persisted contract record that owns a schedule

DESIGN PRINCIPLES:
  1. Precision: Money and shares use decimal.Decimal, never float64
  2. Purity: Validator and editor functions never mutate their inputs
  3. Data, not exceptions: Violations are returned as messages
  4. Injection: Rules are passed in, there are no package-level thresholds

USAGE:
  v := schedule.NewValidator(schedule.DefaultRules())
  result := v.ValidateSchedule(schedule.ContractContext{
      ContractAmount: decimal.NewFromInt(100_000_000),
      Mode:           schedule.ModeCreate,
  }, terms)
  if !result.IsValid() {
      // show result.Errors inline, refuse to save
  }

SEE ALSO:
  - rules.go: Rule thresholds
  - validator.go: The rule engine
  - editor.go: Add/edit/delete operations on the term list
  - status.go: Payment status lifecycle
*/
package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ContractID string
type TermID string

// =============================================================================
// PAYMENT STATUS
// =============================================================================

type PaymentStatus string

const (
	StatusUnpaid   PaymentStatus = "unpaid"
	StatusInvoiced PaymentStatus = "invoiced"
	StatusPaid     PaymentStatus = "paid"
	StatusOverdue  PaymentStatus = "overdue"
)

// Valid reports whether s is one of the four known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusUnpaid, StatusInvoiced, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// ParseStatus maps free text to a status. Unknown values fall back to unpaid.
func ParseStatus(s string) PaymentStatus {
	st := PaymentStatus(s)
	if st.Valid() {
		return st
	}
	return StatusUnpaid
}

// =============================================================================
// PAYMENT TERM - One installment
// =============================================================================

// PaymentTerm is one scheduled installment of a contract's total value.
//
// Amount and Percentage are two views of the same quantity. Whichever one the
// user edits is the source of truth and the other is re-derived whenever the
// contract amount is known and positive (see editor.go).
type PaymentTerm struct {
	ID          TermID // empty until persisted
	TermNumber  int    // display ordinal, not an identity
	Description string
	DueDate     string // ISO YYYY-MM-DD; kept raw so bad input is reported, not lost
	Amount      decimal.Decimal
	Percentage  decimal.Decimal
	Status      PaymentStatus
	PaidAmount  decimal.Decimal // > 0 only when Status == paid
	PaidDate    string          // required when Status == paid
	Notes       string

	// Contract document marker, consumed by the delete refusal rule.
	DocumentType string
	FileName     string
}

// IsPersisted returns true once the store has assigned an ID.
func (t PaymentTerm) IsPersisted() bool { return t.ID != "" }

// =============================================================================
// CONTRACT CONTEXT - Read-only validator input
// =============================================================================

// Mode selects how historical due dates are treated.
type Mode string

const (
	// ModeCreate flags past due dates (other than the first term).
	ModeCreate Mode = "create"
	// ModeEdit accepts past dates; historical schedules legitimately have them.
	ModeEdit Mode = "edit"
)

// ParseMode maps free text to a Mode, defaulting to edit.
func ParseMode(s string) Mode {
	if Mode(s) == ModeCreate {
		return ModeCreate
	}
	return ModeEdit
}

type ContractContext struct {
	ContractAmount decimal.Decimal
	StartDate      string // optional
	EndDate        string // optional
	Mode           Mode
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

type ValidationResult struct {
	Errors          []string // blocking
	Warnings        []string // advisory
	TotalAmount     decimal.Decimal
	TotalPercentage decimal.Decimal
}

// IsValid returns true when nothing blocks submission. Warnings are ignored.
func (r ValidationResult) IsValid() bool { return len(r.Errors) == 0 }

func newResult() ValidationResult {
	return ValidationResult{
		Errors:          []string{},
		Warnings:        []string{},
		TotalAmount:     decimal.Zero,
		TotalPercentage: decimal.Zero,
	}
}

func (r *ValidationResult) addError(msg string)   { r.Errors = append(r.Errors, msg) }
func (r *ValidationResult) addWarning(msg string) { r.Warnings = append(r.Warnings, msg) }

// =============================================================================
// CONTRACT - Owner of a schedule
// =============================================================================

// Contract is the persisted record that owns a payment schedule.
// The term list has no identity of its own outside the contract.
type Contract struct {
	ID        ContractID
	Code      string
	Name      string
	Amount    decimal.Decimal
	StartDate string
	EndDate   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Context builds the validator input for this contract.
func (c Contract) Context(mode Mode) ContractContext {
	return ContractContext{
		ContractAmount: c.Amount,
		StartDate:      c.StartDate,
		EndDate:        c.EndDate,
		Mode:           mode,
	}
}
