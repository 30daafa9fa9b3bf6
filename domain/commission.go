package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ComputeCommission returns orderTotal * ratePercent / 100 rounded half-up to
// cents. Inputs must already be validated; a negative value is a caller bug.
func ComputeCommission(orderTotal, ratePercent decimal.Decimal) decimal.Decimal {
	if orderTotal.IsNegative() || ratePercent.IsNegative() {
		panic("domain: negative input to ComputeCommission")
	}
	// decimal.Round rounds half away from zero, which is half-up for non-negative values.
	return orderTotal.Mul(ratePercent).Div(hundred).Round(2)
}

// ValidateMoney rejects negative amounts and amounts with more than two fractional digits.
func ValidateMoney(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateRate accepts commission percentages in [0, 100] with at most two decimals.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) || !rate.Equal(rate.Round(2)) {
		return NewError(ErrCodeInvalid, "invalid commission rate")
	}
	return nil
}
