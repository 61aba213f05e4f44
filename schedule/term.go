package schedule

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COERCION - Boundary for unreliable external data
// =============================================================================
//
// Terms arrive from JSON bodies, CSV imports and older API clients with
// numbers encoded as strings, nulls where dates belong and missing fields.
// CoerceTerm turns any of that into a fully typed PaymentTerm. It never
// panics; whatever is still semantically wrong afterwards (an amount of 0,
// an unparsable date) is reported by the validator like any other violation.

// CoerceTerm normalizes a loosely typed term. Both camelCase and snake_case
// keys are accepted. Numeric fields default to 0, text fields to "".
func CoerceTerm(raw map[string]any) PaymentTerm {
	t := PaymentTerm{
		ID:           TermID(coerceString(pick(raw, "id"))),
		TermNumber:   coerceInt(pick(raw, "termNumber", "term_number")),
		Description:  strings.TrimSpace(coerceString(pick(raw, "description"))),
		DueDate:      coerceDate(pick(raw, "dueDate", "due_date")),
		Amount:       coerceDecimal(pick(raw, "amount")),
		Percentage:   coerceDecimal(pick(raw, "percentage")),
		Status:       ParseStatus(strings.ToLower(strings.TrimSpace(coerceString(pick(raw, "status"))))),
		PaidAmount:   coerceDecimal(pick(raw, "paidAmount", "paid_amount")),
		PaidDate:     coerceDate(pick(raw, "paidDate", "paid_date")),
		Notes:        coerceString(pick(raw, "notes")),
		DocumentType: strings.TrimSpace(coerceString(pick(raw, "documentType", "document_type"))),
		FileName:     strings.TrimSpace(coerceString(pick(raw, "fileName", "file_name"))),
	}
	if t.Status != StatusPaid {
		t.PaidAmount = decimal.Zero
		t.PaidDate = ""
	}
	return t
}

// CoerceTerms coerces a list and fills missing term numbers with the
// 1-based position.
func CoerceTerms(raws []map[string]any) []PaymentTerm {
	terms := make([]PaymentTerm, len(raws))
	for i, raw := range raws {
		terms[i] = CoerceTerm(raw)
		if terms[i].TermNumber <= 0 {
			terms[i].TermNumber = i + 1
		}
	}
	return terms
}

// DerivePercentages re-derives every term's percentage from its amount.
// Amount is the stored source of truth; use this after loading or coercing.
func DerivePercentages(terms []PaymentTerm, contractAmount decimal.Decimal) []PaymentTerm {
	out := cloneTerms(terms)
	if !contractAmount.IsPositive() {
		return out
	}
	for i := range out {
		out[i].Percentage = PercentageFromAmount(out[i].Amount, contractAmount)
	}
	return out
}

func pick(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func coerceString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// CoerceAmount converts a loosely typed money value (number, numeric string,
// "1,000,000") to a decimal. Unparseable input yields zero.
func CoerceAmount(v any) decimal.Decimal { return coerceDecimal(v) }

func coerceDecimal(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(x)
	case float32:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat32(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int32:
		return decimal.NewFromInt32(x)
	case int64:
		return decimal.NewFromInt(x)
	case json.Number:
		return parseDecimal(x.String())
	case string:
		return parseDecimal(x)
	default:
		return decimal.Zero
	}
}

// parseDecimal accepts "1,500,000", " 12.5 " and similar; anything else is 0.
func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSuffix(s, "%")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func coerceInt(v any) int {
	return int(coerceDecimal(v).IntPart())
}

// coerceDate normalizes parsable dates to YYYY-MM-DD and keeps anything else
// verbatim so the validator can report it.
func coerceDate(v any) string {
	return NormalizeDate(coerceString(v))
}

func cloneTerms(terms []PaymentTerm) []PaymentTerm {
	out := make([]PaymentTerm, len(terms))
	copy(out, terms)
	return out
}
