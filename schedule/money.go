package schedule

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CalculatePercentage returns amount / total * 100, or 0 when total <= 0.
func CalculatePercentage(amount, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return amount.Div(total).Mul(hundred)
}

// PercentageFromAmount derives a term's share from its amount. When the
// contract amount is unknown (<= 0) the input is returned unchanged.
func PercentageFromAmount(amount, contractAmount decimal.Decimal) decimal.Decimal {
	if !contractAmount.IsPositive() {
		return amount
	}
	return CalculatePercentage(amount, contractAmount)
}

// AmountFromPercentage derives a term's amount from its share. When the
// contract amount is unknown (<= 0) the input is returned unchanged.
func AmountFromPercentage(pct, contractAmount decimal.Decimal) decimal.Decimal {
	if !contractAmount.IsPositive() {
		return pct
	}
	return contractAmount.Mul(pct).Div(hundred)
}

// SumAmounts totals the amount of every term.
func SumAmounts(terms []PaymentTerm) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range terms {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// SumPercentages totals the stored percentage of every term.
func SumPercentages(terms []PaymentTerm) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range terms {
		sum = sum.Add(t.Percentage)
	}
	return sum
}

// ShareOf is a term's amount as a percentage of the contract amount.
func ShareOf(t PaymentTerm, contractAmount decimal.Decimal) decimal.Decimal {
	return CalculatePercentage(t.Amount, contractAmount)
}

// formatMoney renders an amount for messages: integers without decimals,
// everything else to two places.
func formatMoney(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.StringFixed(0)
	}
	return d.StringFixed(2)
}

// formatPercent renders a share to two decimal places.
func formatPercent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}
