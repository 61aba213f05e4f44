/*
validator.go - The payment schedule rule engine

PURPOSE:
  Given a contract context and an ordered list of terms, produce every
  blocking error and advisory warning plus the computed totals. One pure
  pass over plain data: no I/O, no mutation, no throttling. Calling it twice
  with the same input yields the same result.

EVALUATION ORDER (all checks run and accumulate, none short-circuit):
  1. Degenerate input    empty schedule
  2. Reconciliation      sum vs contract amount +/- tolerance slack
  3. Percentage sum      total share vs 100% +/- 0.1 points
  4. Advance policy      first term marked as advance, share ceiling
  5. Final policy        last term share floor (warning)
  6. Date integrity      duplicates (error), spacing (warning)
  7. Volume policy       too few terms for high value, too many terms
  8. Per-term checks     dates, window, amount floors, share floor

TWO RECONCILIATION VIEWS:
  Steps 2 and 3 look at the same quantity. Step 2 uses the configurable
  monetary tolerance; step 3 uses a fixed 0.1 percentage point tolerance and
  is more sensitive. Both are reported when both fail.

LIVE EDITING:
  ValidateSingleTerm runs step 8 for one row, plus the first-term advance
  ceiling from step 4, so an edit form can show feedback before the whole
  schedule is re-validated.
*/
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Validator checks schedules against one rule set.
type Validator struct {
	Rules Rules

	// Now supplies "today" for past-date checks. Defaults to time.Now.
	Now func() time.Time
}

// NewValidator creates a validator for the given rules.
func NewValidator(rules Rules) *Validator {
	return &Validator{Rules: rules, Now: time.Now}
}

func (v *Validator) today() Date {
	if v.Now == nil {
		return Today()
	}
	return DateOf(v.Now())
}

// ValidateSchedule runs every schedule rule and returns the accumulated result.
//
// A negative contract amount is a programming error (upstream validation
// should have rejected it) and panics with *PreconditionError.
func (v *Validator) ValidateSchedule(ctx ContractContext, terms []PaymentTerm) ValidationResult {
	requireNonNegative(ctx.ContractAmount)

	result := newResult()

	if len(terms) == 0 {
		if ctx.ContractAmount.IsPositive() {
			result.addError("No payment terms defined")
		}
		return result
	}

	sum := SumAmounts(terms)
	result.TotalAmount = sum
	result.TotalPercentage = CalculatePercentage(sum, ctx.ContractAmount)

	v.checkReconciliation(ctx, sum, &result)
	v.checkPercentageSum(result.TotalPercentage, &result)
	v.checkAdvance(ctx, terms, &result)
	v.checkFinal(ctx, terms, &result)
	v.checkDates(terms, &result)
	v.checkVolume(ctx, terms, &result)

	today := v.today()
	for i, t := range terms {
		desc := t.Description
		msgs := v.termErrors(ctx, termInput{
			index:       i,
			count:       len(terms),
			description: &desc,
			dueDate:     t.DueDate,
			amount:      t.Amount,
			paid:        paidStateOf(t),
		}, today)
		for _, m := range msgs {
			result.addError(m)
		}
	}

	return result
}

// ValidateSingleTerm returns inline errors for the term at index as if it had
// the given due date and amount. The description is taken from terms[index]
// when that position exists.
func (v *Validator) ValidateSingleTerm(ctx ContractContext, terms []PaymentTerm, index int, dueDate string, amount decimal.Decimal) []string {
	requireNonNegative(ctx.ContractAmount)

	in := termInput{
		index:          index,
		count:          len(terms),
		dueDate:        dueDate,
		amount:         amount,
		advanceCeiling: true,
	}
	if index >= 0 && index < len(terms) {
		desc := terms[index].Description
		in.description = &desc
		in.paid = paidStateOf(terms[index])
	} else if index == len(terms) {
		// Validating a row that is about to be appended.
		in.count = len(terms) + 1
	}

	msgs := v.termErrors(ctx, in, v.today())
	if msgs == nil {
		return []string{}
	}
	return msgs
}

func requireNonNegative(amount decimal.Decimal) {
	if amount.IsNegative() {
		panic(&PreconditionError{Err: ErrNegativeContractAmount, Detail: amount.String()})
	}
}

// =============================================================================
// SCHEDULE-LEVEL CHECKS
// =============================================================================

func (v *Validator) checkReconciliation(ctx ContractContext, sum decimal.Decimal, r *ValidationResult) {
	slack := ctx.ContractAmount.Mul(v.Rules.TotalAmountTolerancePercent).Div(hundred)

	if sum.GreaterThan(ctx.ContractAmount.Add(slack)) {
		r.addError(fmt.Sprintf("Total payment amount (%s) exceeds contract value (%s)",
			formatMoney(sum), formatMoney(ctx.ContractAmount)))
	}
	if sum.LessThan(ctx.ContractAmount.Sub(slack)) {
		diff := ctx.ContractAmount.Sub(sum)
		r.addError(fmt.Sprintf("Total payment amount is less than contract value by %s",
			formatMoney(diff)))
	}
}

func (v *Validator) checkPercentageSum(total decimal.Decimal, r *ValidationResult) {
	if total.Sub(hundred).Abs().GreaterThan(percentageSumTolerance) {
		r.addError(fmt.Sprintf("Total percentage must equal 100%% (currently %s)", formatPercent(total)))
	}
}

func (v *Validator) checkAdvance(ctx ContractContext, terms []PaymentTerm, r *ValidationResult) {
	if len(terms) < 2 {
		return
	}
	first := terms[0]
	if !v.isAdvance(first.Description) {
		r.addWarning("First payment term is not marked as an advance payment")
	}
	share := ShareOf(first, ctx.ContractAmount)
	if ctx.ContractAmount.IsPositive() && share.GreaterThan(v.Rules.AdvancePaymentMaxPercentage) {
		r.addError(fmt.Sprintf("Advance payment is %s of the contract, above the maximum of %s",
			formatPercent(share), formatPercent(v.Rules.AdvancePaymentMaxPercentage)))
	}
}

func (v *Validator) isAdvance(description string) bool {
	desc := strings.ToLower(description)
	for _, kw := range v.Rules.AdvanceKeywords {
		if kw != "" && strings.Contains(desc, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (v *Validator) checkFinal(ctx ContractContext, terms []PaymentTerm, r *ValidationResult) {
	if len(terms) < 2 || !ctx.ContractAmount.IsPositive() {
		return
	}
	share := ShareOf(terms[len(terms)-1], ctx.ContractAmount)
	if share.LessThan(v.Rules.FinalPaymentMinPercentage) {
		r.addWarning(fmt.Sprintf("Final payment is %s of the contract, below the recommended minimum of %s",
			formatPercent(share), formatPercent(v.Rules.FinalPaymentMinPercentage)))
	}
}

func (v *Validator) checkDates(terms []PaymentTerm, r *ValidationResult) {
	var dates []Date
	for _, t := range terms {
		if d, ok := ParseDate(t.DueDate); ok {
			dates = append(dates, d)
		}
	}
	if HasDuplicateDates(dates) {
		r.addError("Duplicate due dates found: each payment term must have a different due date")
	}
	if v.Rules.MinDueDateGapDays > 0 && !ValidateMinDateGap(dates, v.Rules.MinDueDateGapDays) {
		r.addWarning(fmt.Sprintf("Due dates should be at least %d days apart", v.Rules.MinDueDateGapDays))
	}
}

func (v *Validator) checkVolume(ctx ContractContext, terms []PaymentTerm, r *ValidationResult) {
	count := len(terms)
	if ctx.ContractAmount.GreaterThan(v.Rules.HighValueThreshold) && count < v.Rules.MinTermsForHighValue {
		r.addWarning(fmt.Sprintf("Contracts above %s should have at least %d payment terms (currently %d)",
			formatMoney(v.Rules.HighValueThreshold), v.Rules.MinTermsForHighValue, count))
	}
	if v.Rules.MaxPaymentTerms > 0 && count > v.Rules.MaxPaymentTerms {
		r.addWarning(fmt.Sprintf("Schedule has %d payment terms, more than the recommended maximum of %d",
			count, v.Rules.MaxPaymentTerms))
	}
}

// =============================================================================
// PER-TERM CHECKS
// =============================================================================

type termInput struct {
	index       int
	count       int
	description *string // nil when unknown
	dueDate     string
	amount      decimal.Decimal

	// advanceCeiling repeats step 4's ceiling at row level. Off in the
	// aggregate pass so the violation is reported once.
	advanceCeiling bool

	paid *paidState // nil unless the term is marked paid
}

type paidState struct {
	date   string
	amount decimal.Decimal
}

func paidStateOf(t PaymentTerm) *paidState {
	if t.Status != StatusPaid {
		return nil
	}
	return &paidState{date: t.PaidDate, amount: t.PaidAmount}
}

func (v *Validator) termErrors(ctx ContractContext, in termInput, today Date) []string {
	var errs []string
	label := fmt.Sprintf("Term %d", in.index+1)
	add := func(format string, args ...any) {
		errs = append(errs, label+": "+fmt.Sprintf(format, args...))
	}

	if in.description != nil && v.Rules.Requires(FieldDescription) && strings.TrimSpace(*in.description) == "" {
		add("description is required")
	}

	// Dates
	switch {
	case strings.TrimSpace(in.dueDate) == "":
		if v.Rules.Requires(FieldDueDate) {
			add("due date is required")
		}
	default:
		due, ok := ParseDate(in.dueDate)
		if !ok {
			add("due date %q is not a valid date", in.dueDate)
			break
		}
		if ctx.Mode == ModeCreate && in.index > 0 && due.Before(today) {
			add("due date %s is in the past", due)
		}
		if start, ok := ParseDate(ctx.StartDate); ok && due.Before(start) {
			add("due date %s is before the contract start date %s", due, start)
		}
		if end, ok := ParseDate(ctx.EndDate); ok && due.After(end) {
			add("due date %s is after the contract end date %s", due, end)
		}
	}

	// Amount
	if !in.amount.IsPositive() {
		add("amount must be greater than 0")
	} else if in.amount.LessThan(v.Rules.MinTermAmount) {
		add("amount %s is below the minimum of %s", formatMoney(in.amount), formatMoney(v.Rules.MinTermAmount))
	}

	// Share
	if ctx.ContractAmount.IsPositive() {
		share := CalculatePercentage(in.amount, ctx.ContractAmount)
		if share.LessThan(v.Rules.MinPaymentPercentage) {
			add("share %s is below the minimum of %s", formatPercent(share), formatPercent(v.Rules.MinPaymentPercentage))
		}
		if in.advanceCeiling && in.index == 0 && in.count > 1 && share.GreaterThan(v.Rules.AdvancePaymentMaxPercentage) {
			add("advance payment %s exceeds the maximum of %s", formatPercent(share), formatPercent(v.Rules.AdvancePaymentMaxPercentage))
		}
	}

	// Paid state
	if in.paid != nil {
		if _, ok := ParseDate(in.paid.date); !ok {
			add("paid terms need a valid paid date")
		}
		if !in.paid.amount.IsPositive() {
			add("paid terms need a paid amount greater than 0")
		}
	}

	return errs
}
