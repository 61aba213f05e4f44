/*
editor.go - Operations on the ordered term list

PURPOSE:
  Add, edit, delete and reorder payment terms while keeping amount and
  percentage in lock-step. Every operation returns a new slice and leaves its
  input untouched, so a caller can preview an edit, validate the preview and
  discard it.

  The editor does NOT validate. Callers re-run the Validator on the result.

AMOUNT <-> PERCENTAGE:
  Whichever field an edit changes is the source of truth for that edit; the
  other is re-derived when the contract amount is positive. The two are never
  allowed to drift independently.

REALLOCATION:
  A new term normally takes 10% of the contract. When the schedule is already
  fully allocated (>= 100%), the new term instead takes 100/(count+1)% so the
  add does not immediately produce an over-allocation error.

DELETE REFUSAL:
  When the rules require a contract file, the last term carrying the
  contract-document marker cannot be deleted. The refusal is returned as a
  *DeleteRefusedError, never silently ignored.
*/
package schedule

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	defaultSharePercent = 10
	defaultDueOffset    = 30 // days after max(today, contract start)
)

// TermPatch lists the fields an edit changes. Nil fields are left alone.
type TermPatch struct {
	TermNumber   *int
	Description  *string
	DueDate      *string
	Amount       *decimal.Decimal
	Percentage   *decimal.Decimal
	Notes        *string
	DocumentType *string
	FileName     *string
}

// PatchFromRaw builds a patch from a loosely typed body. Only keys present in
// raw are patched; values go through the same coercion as CoerceTerm.
func PatchFromRaw(raw map[string]any) TermPatch {
	var p TermPatch
	t := CoerceTerm(raw)
	has := func(keys ...string) bool {
		for _, k := range keys {
			if _, ok := raw[k]; ok {
				return true
			}
		}
		return false
	}
	if has("termNumber", "term_number") {
		p.TermNumber = &t.TermNumber
	}
	if has("description") {
		p.Description = &t.Description
	}
	if has("dueDate", "due_date") {
		p.DueDate = &t.DueDate
	}
	if has("amount") {
		p.Amount = &t.Amount
	}
	if has("percentage") {
		p.Percentage = &t.Percentage
	}
	if has("notes") {
		p.Notes = &t.Notes
	}
	if has("documentType", "document_type") {
		p.DocumentType = &t.DocumentType
	}
	if has("fileName", "file_name") {
		p.FileName = &t.FileName
	}
	return p
}

// =============================================================================
// ADD
// =============================================================================

// NextShare is the percentage a newly added term should receive.
func NextShare(terms []PaymentTerm, contractAmount decimal.Decimal) decimal.Decimal {
	allocated := SumPercentages(terms)
	if contractAmount.IsPositive() {
		allocated = CalculatePercentage(SumAmounts(terms), contractAmount)
	}
	if allocated.GreaterThanOrEqual(hundred) {
		return hundred.Div(decimal.NewFromInt(int64(len(terms) + 1)))
	}
	return decimal.NewFromInt(defaultSharePercent)
}

// AddDefaultTerm appends a system-suggested term: next term number, the
// NextShare of the contract, due 30 days after the later of today and the
// contract start.
func AddDefaultTerm(terms []PaymentTerm, contractAmount decimal.Decimal, contractStart string, today Date) []PaymentTerm {
	share := NextShare(terms, contractAmount)

	amount := decimal.Zero
	if contractAmount.IsPositive() {
		amount = AmountFromPercentage(share, contractAmount).Round(0)
	}

	base := today
	if start, ok := ParseDate(contractStart); ok {
		base = Later(today, start)
	}

	number := maxTermNumber(terms) + 1
	description := fmt.Sprintf("Payment %d", number)
	if len(terms) == 0 {
		description = "Advance payment"
	}

	out := cloneTerms(terms)
	return append(out, PaymentTerm{
		TermNumber:  number,
		Description: description,
		DueDate:     base.AddDays(defaultDueOffset).String(),
		Amount:      amount,
		Percentage:  share,
		Status:      StatusUnpaid,
		PaidAmount:  decimal.Zero,
	})
}

func maxTermNumber(terms []PaymentTerm) int {
	max := 0
	for _, t := range terms {
		if t.TermNumber > max {
			max = t.TermNumber
		}
	}
	return max
}

// =============================================================================
// EDIT
// =============================================================================

// EditTerm applies patch to the term at index.
func EditTerm(terms []PaymentTerm, index int, patch TermPatch, contractAmount decimal.Decimal) ([]PaymentTerm, error) {
	if index < 0 || index >= len(terms) {
		return nil, fmt.Errorf("edit term %d of %d: %w", index, len(terms), ErrTermIndexOutOfRange)
	}
	out := cloneTerms(terms)
	out[index] = ApplyPatch(out[index], patch, contractAmount)
	return out, nil
}

// ApplyPatch returns t with patch applied and amount/percentage re-derived.
func ApplyPatch(t PaymentTerm, patch TermPatch, contractAmount decimal.Decimal) PaymentTerm {
	if patch.TermNumber != nil && *patch.TermNumber > 0 {
		t.TermNumber = *patch.TermNumber
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.DueDate != nil {
		t.DueDate = *patch.DueDate
	}
	if patch.Notes != nil {
		t.Notes = *patch.Notes
	}
	if patch.DocumentType != nil {
		t.DocumentType = *patch.DocumentType
	}
	if patch.FileName != nil {
		t.FileName = *patch.FileName
	}

	amountChanged := patch.Amount != nil && !patch.Amount.Equal(t.Amount)
	pctChanged := patch.Percentage != nil && !patch.Percentage.Equal(t.Percentage)
	known := contractAmount.IsPositive()

	switch {
	case amountChanged:
		t.Amount = *patch.Amount
		if known {
			t.Percentage = PercentageFromAmount(t.Amount, contractAmount)
		} else if pctChanged {
			t.Percentage = *patch.Percentage
		}
	case pctChanged:
		t.Percentage = *patch.Percentage
		if known {
			t.Amount = AmountFromPercentage(t.Percentage, contractAmount)
		}
	}
	return t
}

// =============================================================================
// DELETE
// =============================================================================

// IsContractDocument reports whether t carries the contract-document marker,
// either by document type or by file name extension.
func IsContractDocument(t PaymentTerm, rules Rules) bool {
	if rules.ContractDocumentType != "" && strings.EqualFold(t.DocumentType, rules.ContractDocumentType) {
		return true
	}
	ext := strings.ToLower(rules.ContractDocumentExtension)
	return ext != "" && strings.HasSuffix(strings.ToLower(t.FileName), ext)
}

// DeleteTerm removes the term at index, or refuses with *DeleteRefusedError
// when it is the last contract document and the rules require one.
func DeleteTerm(terms []PaymentTerm, index int, rules Rules) ([]PaymentTerm, error) {
	if index < 0 || index >= len(terms) {
		return nil, fmt.Errorf("delete term %d of %d: %w", index, len(terms), ErrTermIndexOutOfRange)
	}

	target := terms[index]
	if rules.RequireContractFile && IsContractDocument(target, rules) {
		others := 0
		for i, t := range terms {
			if i != index && IsContractDocument(t, rules) {
				others++
			}
		}
		if others == 0 {
			return nil, &DeleteRefusedError{
				Index:  index,
				TermID: target.ID,
				Reason: "it carries the only contract document and a contract file is required",
			}
		}
	}

	out := make([]PaymentTerm, 0, len(terms)-1)
	out = append(out, terms[:index]...)
	out = append(out, terms[index+1:]...)
	return out, nil
}

// =============================================================================
// REORDER
// =============================================================================

// MoveTerm moves the term at from to position to, shifting the others.
func MoveTerm(terms []PaymentTerm, from, to int) ([]PaymentTerm, error) {
	if from < 0 || from >= len(terms) || to < 0 || to >= len(terms) {
		return nil, fmt.Errorf("move term %d -> %d of %d: %w", from, to, len(terms), ErrTermIndexOutOfRange)
	}
	out := cloneTerms(terms)
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]PaymentTerm{moved}, out[to:]...)...)
	return out, nil
}

// Renumber assigns term numbers 1..n in list order.
func Renumber(terms []PaymentTerm) []PaymentTerm {
	out := cloneTerms(terms)
	for i := range out {
		out[i].TermNumber = i + 1
	}
	return out
}

// IndexOf returns the position of the term with the given ID, or -1.
func IndexOf(terms []PaymentTerm, id TermID) int {
	for i, t := range terms {
		if t.ID == id {
			return i
		}
	}
	return -1
}
