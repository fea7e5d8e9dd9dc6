package budget

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	amountScale          = 2
	amountIntegerDigits  = 10
	maxAmountStringInput = 32
)

var maxAmount = decimal.New(1, amountIntegerDigits).Sub(decimal.New(1, -amountScale))

// ParseAmount parses a form amount into a decimal that fits NUMERIC(12,2).
// Zero is allowed, negative values and extra fractional digits are not.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	if len(raw) > maxAmountStringInput {
		return decimal.Zero, fmt.Errorf("%w: amount too long", ErrInvalidAmount)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, raw)
	}
	if err := ValidateAmount(value); err != nil {
		return decimal.Zero, err
	}
	return value, nil
}

// ValidateAmount checks range and precision of an already parsed amount.
func ValidateAmount(value decimal.Decimal) error {
	if value.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidAmount)
	}
	if !value.Equal(value.Truncate(amountScale)) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, amountScale)
	}
	if value.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: amount exceeds %s", ErrInvalidAmount, maxAmount.StringFixed(amountScale))
	}
	return nil
}

// Sum adds amounts exactly. An empty slice sums to zero.
func Sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// ComputeSummary derives remaining and bottom balances from cached totals.
func ComputeSummary(project Project, branches []Branch) Summary {
	spent := make([]decimal.Decimal, 0, len(branches))
	for _, b := range branches {
		spent = append(spent, b.TotalSpent)
	}
	totalSpent := Sum(spent)
	return Summary{
		Amount:           project.Amount,
		TotalReleased:    project.TotalReleased,
		TotalBranchSpent: totalSpent,
		Remaining:        project.Amount.Sub(project.TotalReleased),
		BottomAmount:     project.TotalReleased.Sub(totalSpent),
	}
}
