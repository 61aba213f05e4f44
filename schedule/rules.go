/*
rules.go - Business-rule thresholds for payment schedules

PURPOSE:
  A single immutable value holding every threshold the validator and editor
  consult. It is injected (NewValidator, DeleteTerm) rather than read from
  package state, so one process can serve several tenants with different
  rule sets and tests can pin exact values.

THRESHOLDS:
  TotalAmountTolerancePercent  Slack between schedule sum and contract amount
  AdvancePaymentMaxPercentage  Ceiling on the first term's share (error)
  FinalPaymentMinPercentage    Floor on the last term's share (warning)
  MinPaymentPercentage         Floor on any term's share (error)
  MinDueDateGapDays            Spacing between adjacent due dates (warning)
  HighValueThreshold           Contract amount above which ...
  MinTermsForHighValue         ... fewer terms than this is a warning
  MaxPaymentTerms              More terms than this is a warning
  MinTermAmount                Absolute floor on one term's amount (error)

POLICY FLAGS:
  RequireContractFile and MinRequiredFiles belong to the attachment policy
  (contract/attachments.go). They live here so one rule set describes a
  deployment, and because the delete refusal in editor.go depends on them.

LOADING:
  DefaultRules() is the stock configuration. factory.RulesFactory parses
  JSON and TOML rule files into this type.
*/
package schedule

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// percentageSumTolerance is the allowed drift, in percentage points, between
// the schedule's total share and 100%. Independent of
// TotalAmountTolerancePercent. Read it through PercentageSumTolerance.
var percentageSumTolerance = decimal.New(1, -1)

// PercentageSumTolerance returns the fixed 0.1 point tolerance of the
// percentage-sum check.
func PercentageSumTolerance() decimal.Decimal { return percentageSumTolerance }

// Field names accepted in Rules.RequiredFields.
const (
	FieldDescription = "description"
	FieldDueDate     = "dueDate"
)

type Rules struct {
	Version string

	TotalAmountTolerancePercent decimal.Decimal
	AdvancePaymentMaxPercentage decimal.Decimal
	FinalPaymentMinPercentage   decimal.Decimal
	MinPaymentPercentage        decimal.Decimal
	MinDueDateGapDays           int
	HighValueThreshold          decimal.Decimal
	MinTermsForHighValue        int
	MaxPaymentTerms             int
	MinTermAmount               decimal.Decimal

	// Description substrings (case-insensitive) that mark a term as the advance.
	AdvanceKeywords []string

	// Field-level constraints.
	RequiredFields []string

	// Attachment policy
	RequireContractFile       bool
	MinRequiredFiles          int
	ContractDocumentType      string
	ContractDocumentExtension string
}

// DefaultRules returns the stock deployment configuration.
func DefaultRules() Rules {
	return Rules{
		Version:                     "default-1",
		TotalAmountTolerancePercent: decimal.NewFromFloat(0.5),
		AdvancePaymentMaxPercentage: decimal.NewFromInt(30),
		FinalPaymentMinPercentage:   decimal.NewFromInt(5),
		MinPaymentPercentage:        decimal.NewFromInt(1),
		MinDueDateGapDays:           7,
		HighValueThreshold:          decimal.NewFromInt(1_000_000_000),
		MinTermsForHighValue:        3,
		MaxPaymentTerms:             24,
		MinTermAmount:               decimal.NewFromInt(1000),
		AdvanceKeywords: []string{
			"advance", "down payment", "deposit", "prepayment",
			"tạm ứng", "đặt cọc",
		},
		RequiredFields:            []string{FieldDescription, FieldDueDate},
		RequireContractFile:       true,
		MinRequiredFiles:          1,
		ContractDocumentType:      "contract",
		ContractDocumentExtension: ".pdf",
	}
}

// Requires reports whether field is listed in RequiredFields.
func (r Rules) Requires(field string) bool {
	for _, f := range r.RequiredFields {
		if f == field {
			return true
		}
	}
	return false
}

// Validate rejects self-contradictory rule sets.
func (r Rules) Validate() error {
	nonNegative := map[string]decimal.Decimal{
		"total_amount_tolerance_percent": r.TotalAmountTolerancePercent,
		"advance_payment_max_percentage": r.AdvancePaymentMaxPercentage,
		"final_payment_min_percentage":   r.FinalPaymentMinPercentage,
		"min_payment_percentage":         r.MinPaymentPercentage,
		"high_value_threshold":           r.HighValueThreshold,
		"min_term_amount":                r.MinTermAmount,
	}
	for name, v := range nonNegative {
		if v.IsNegative() {
			return &InvalidRulesError{Field: name, Reason: "must not be negative"}
		}
	}
	for name, v := range map[string]decimal.Decimal{
		"advance_payment_max_percentage": r.AdvancePaymentMaxPercentage,
		"final_payment_min_percentage":   r.FinalPaymentMinPercentage,
		"min_payment_percentage":         r.MinPaymentPercentage,
	} {
		if v.GreaterThan(hundred) {
			return &InvalidRulesError{Field: name, Reason: "must not exceed 100"}
		}
	}
	if r.MinDueDateGapDays < 0 || r.MinTermsForHighValue < 0 || r.MaxPaymentTerms < 0 || r.MinRequiredFiles < 0 {
		return &InvalidRulesError{Field: "counts", Reason: "must not be negative"}
	}
	if r.MaxPaymentTerms > 0 && r.MinTermsForHighValue > r.MaxPaymentTerms {
		return &InvalidRulesError{
			Field:  "min_terms_for_high_value",
			Reason: fmt.Sprintf("%d exceeds max_payment_terms %d", r.MinTermsForHighValue, r.MaxPaymentTerms),
		}
	}
	if r.MinPaymentPercentage.GreaterThan(r.AdvancePaymentMaxPercentage) {
		return &InvalidRulesError{Field: "min_payment_percentage", Reason: "exceeds advance_payment_max_percentage"}
	}
	return nil
}
