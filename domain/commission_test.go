package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeCommission(t *testing.T) {
	cases := []struct {
		name  string
		total string
		rate  string
		want  string
	}{
		{name: "ten percent of 99", total: "99.00", rate: "10.00", want: "9.90"},
		{name: "ten percent of 10", total: "10.00", rate: "10.00", want: "1.00"},
		{name: "zero total", total: "0", rate: "10.00", want: "0.00"},
		{name: "zero rate", total: "149.99", rate: "0", want: "0.00"},
		{name: "half cent rounds up", total: "0.05", rate: "10.00", want: "0.01"},
		{name: "below half cent rounds down", total: "0.04", rate: "10.00", want: "0.00"},
		{name: "fractional rate", total: "123.45", rate: "7.50", want: "9.26"},
		{name: "full rate", total: "59.99", rate: "100", want: "59.99"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeCommission(decimal.RequireFromString(tc.total), decimal.RequireFromString(tc.rate))
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestComputeCommissionIsDeterministic(t *testing.T) {
	total := decimal.RequireFromString("87.65")
	rate := decimal.RequireFromString("12.50")

	first := ComputeCommission(total, rate)
	for i := 0; i < 50; i++ {
		assert.True(t, first.Equal(ComputeCommission(total, rate)))
	}
}

func TestComputeCommissionPanicsOnNegativeInput(t *testing.T) {
	assert.Panics(t, func() {
		ComputeCommission(decimal.NewFromInt(-1), DefaultCommissionRate)
	})
	assert.Panics(t, func() {
		ComputeCommission(decimal.NewFromInt(1), decimal.NewFromInt(-5))
	})
}

func TestValidateMoney(t *testing.T) {
	assert.NoError(t, ValidateMoney(decimal.RequireFromString("10.25")))
	assert.NoError(t, ValidateMoney(decimal.Zero))
	assert.ErrorIs(t, ValidateMoney(decimal.RequireFromString("-0.01")), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateMoney(decimal.RequireFromString("1.001")), ErrInvalidAmount)
}

func TestValidateRate(t *testing.T) {
	assert.NoError(t, ValidateRate(DefaultCommissionRate))
	assert.NoError(t, ValidateRate(decimal.RequireFromString("100")))
	assert.True(t, IsDomainError(ValidateRate(decimal.RequireFromString("100.01")), ErrCodeInvalid))
	assert.True(t, IsDomainError(ValidateRate(decimal.RequireFromString("-1")), ErrCodeInvalid))
}
