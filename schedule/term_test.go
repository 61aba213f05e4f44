package schedule_test

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payment-schedule/schedule"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// TERM COERCION
// =============================================================================

func TestCoerceTerm_StringNumbers(t *testing.T) {
	// GIVEN: A term as some clients send it, with numbers as strings
	raw := map[string]any{
		"id":          "t-1",
		"term_number": "2",
		"description": "  Milestone  ",
		"due_date":    "2026-05-01T00:00:00Z",
		"amount":      "1,500,000",
		"percentage":  "15%",
		"status":      "INVOICED",
	}

	// WHEN: Coerced
	term := schedule.CoerceTerm(raw)

	// THEN: Every field is typed and normalized
	assert.Equal(t, schedule.TermID("t-1"), term.ID)
	assert.Equal(t, 2, term.TermNumber)
	assert.Equal(t, "Milestone", term.Description)
	assert.Equal(t, "2026-05-01", term.DueDate)
	assert.True(t, term.Amount.Equal(dec("1500000")), "amount %s", term.Amount)
	assert.True(t, term.Percentage.Equal(dec("15")))
	assert.Equal(t, schedule.StatusInvoiced, term.Status)
}

func TestCoerceTerm_GarbageNeverPanics(t *testing.T) {
	raw := map[string]any{
		"amount":     math.NaN(),
		"percentage": []string{"x"},
		"dueDate":    nil,
		"status":     "refunded",
		"paidAmount": "lots",
	}

	var term schedule.PaymentTerm
	require.NotPanics(t, func() { term = schedule.CoerceTerm(raw) })

	assert.True(t, term.Amount.IsZero())
	assert.True(t, term.Percentage.IsZero())
	assert.Empty(t, term.DueDate)
	assert.Equal(t, schedule.StatusUnpaid, term.Status, "unknown status falls back to unpaid")
	assert.True(t, term.PaidAmount.IsZero())
}

func TestCoerceTerm_InvalidDateKeptForValidator(t *testing.T) {
	term := schedule.CoerceTerm(map[string]any{"dueDate": "2026-02-30"})
	assert.Equal(t, "2026-02-30", term.DueDate)
}

func TestCoerceTerm_PaidFieldsClearedUnlessPaid(t *testing.T) {
	raw := map[string]any{"status": "unpaid", "paidAmount": 100, "paidDate": "2026-01-01"}
	term := schedule.CoerceTerm(raw)
	assert.True(t, term.PaidAmount.IsZero())
	assert.Empty(t, term.PaidDate)

	raw["status"] = "paid"
	term = schedule.CoerceTerm(raw)
	assert.True(t, term.PaidAmount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "2026-01-01", term.PaidDate)
}

func TestCoerceTerm_JSONNumber(t *testing.T) {
	var raw map[string]any
	d := json.NewDecoder(strings.NewReader(`{"amount": 12345678901234.56}`))
	d.UseNumber()
	require.NoError(t, d.Decode(&raw))

	term := schedule.CoerceTerm(raw)
	assert.Equal(t, "12345678901234.56", term.Amount.String())
}

func TestCoerceTerms_FillsTermNumbers(t *testing.T) {
	terms := schedule.CoerceTerms([]map[string]any{
		{"description": "a"},
		{"description": "b", "termNumber": 7},
	})
	assert.Equal(t, 1, terms[0].TermNumber)
	assert.Equal(t, 7, terms[1].TermNumber)
}

// =============================================================================
// AMOUNT <-> PERCENTAGE
// =============================================================================

func TestAmountPercentageRoundTrip(t *testing.T) {
	contracts := []string{"1", "999.99", "100000000", "123456789.12"}
	pcts := []string{"0", "0.01", "10", "33.333", "66.6667", "100"}

	for _, c := range contracts {
		for _, p := range pcts {
			contractAmount, pct := dec(c), dec(p)
			amount := schedule.AmountFromPercentage(pct, contractAmount)
			back := schedule.PercentageFromAmount(amount, contractAmount)
			assert.True(t, back.Sub(pct).Abs().LessThan(dec("0.0001")),
				"contract %s pct %s -> %s", c, p, back)
		}
	}
}

func TestCalculatePercentage_ZeroTotal(t *testing.T) {
	assert.True(t, schedule.CalculatePercentage(dec("50"), decimal.Zero).IsZero())
	assert.True(t, schedule.CalculatePercentage(dec("50"), dec("-10")).IsZero())
	assert.True(t, schedule.CalculatePercentage(dec("25"), dec("200")).Equal(dec("12.5")))
}

func TestDerivePercentages(t *testing.T) {
	terms := []schedule.PaymentTerm{
		{Amount: dec("25000000"), Percentage: dec("99")},
		{Amount: dec("75000000")},
	}

	out := schedule.DerivePercentages(terms, dec("100000000"))

	assert.True(t, out[0].Percentage.Equal(dec("25")))
	assert.True(t, out[1].Percentage.Equal(dec("75")))
	assert.True(t, terms[0].Percentage.Equal(dec("99")), "input is not mutated")

	// Unknown contract amount leaves percentages alone
	out = schedule.DerivePercentages(terms, decimal.Zero)
	assert.True(t, out[0].Percentage.Equal(dec("99")))
}
