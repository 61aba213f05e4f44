/*
status.go - Payment status lifecycle of a single term

STATE MACHINE:
  ┌─────────┐      ┌──────────┐
  │ unpaid  │ <──> │ invoiced │      transitions among unpaid, invoiced
  └─────────┘      └──────────┘      and overdue are unconstrained
       ^  \          /  ^
       │   v        v   │
       │   ┌─────────┐  │
       └── │ overdue │ ─┘
           └─────────┘
       any ──▶ paid      requires a valid paidDate and paidAmount > 0
       paid ──▶ other    clears paidAmount and paidDate

  A rejected transition returns the full error list and leaves the term
  exactly as it was. Notes may be updated on any transition and are never
  cleared automatically.
*/
package schedule

import (
	"github.com/shopspring/decimal"
)

// TransitionInput carries the optional fields of a status change.
type TransitionInput struct {
	PaidDate   string
	PaidAmount decimal.Decimal
	Notes      *string // nil leaves notes unchanged
}

// TransitionStatus moves term to status `to`. On success it returns the
// updated copy and nil; on failure the unchanged term and every reason.
func TransitionStatus(term PaymentTerm, to PaymentStatus, in TransitionInput) (PaymentTerm, []string) {
	var errs []string

	if !to.Valid() {
		errs = append(errs, "unknown payment status: "+string(to))
		return term, errs
	}

	next := term
	if to == StatusPaid {
		if in.PaidDate == "" {
			errs = append(errs, "paid date is required when marking a term as paid")
		} else if d, ok := ParseDate(in.PaidDate); !ok {
			errs = append(errs, "paid date is not a valid date")
		} else {
			next.PaidDate = d.String()
		}
		if !in.PaidAmount.IsPositive() {
			errs = append(errs, "paid amount must be greater than 0")
		} else {
			next.PaidAmount = in.PaidAmount
		}
		if len(errs) > 0 {
			return term, errs
		}
	} else {
		next.PaidAmount = decimal.Zero
		next.PaidDate = ""
	}

	next.Status = to
	if in.Notes != nil {
		next.Notes = *in.Notes
	}
	return next, nil
}

// MarkOverdue flips unpaid and invoiced terms whose due date is before today
// to overdue. Returns the new list and how many terms changed.
func MarkOverdue(terms []PaymentTerm, today Date) ([]PaymentTerm, int) {
	out := cloneTerms(terms)
	changed := 0
	for i, t := range out {
		if t.Status != StatusUnpaid && t.Status != StatusInvoiced {
			continue
		}
		due, ok := ParseDate(t.DueDate)
		if !ok || !due.Before(today) {
			continue
		}
		out[i], _ = TransitionStatus(t, StatusOverdue, TransitionInput{})
		changed++
	}
	return out, changed
}

// StatusTotals aggregates one status bucket.
type StatusTotals struct {
	Count  int
	Amount decimal.Decimal
}

// Summary is the collection view of a schedule.
type Summary struct {
	ByStatus    map[PaymentStatus]StatusTotals
	TotalAmount decimal.Decimal
	PaidAmount  decimal.Decimal
	Outstanding decimal.Decimal
}

// StatusSummary aggregates terms per status. Outstanding is the scheduled
// total minus what has actually been paid.
func StatusSummary(terms []PaymentTerm) Summary {
	s := Summary{
		ByStatus:    make(map[PaymentStatus]StatusTotals),
		TotalAmount: decimal.Zero,
		PaidAmount:  decimal.Zero,
	}
	for _, t := range terms {
		st := s.ByStatus[t.Status]
		st.Count++
		st.Amount = st.Amount.Add(t.Amount)
		s.ByStatus[t.Status] = st

		s.TotalAmount = s.TotalAmount.Add(t.Amount)
		if t.Status == StatusPaid {
			s.PaidAmount = s.PaidAmount.Add(t.PaidAmount)
		}
	}
	s.Outstanding = s.TotalAmount.Sub(s.PaidAmount)
	return s
}
