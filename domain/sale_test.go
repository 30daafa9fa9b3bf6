package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaleStatusTransitions(t *testing.T) {
	allowed := map[[2]SaleStatus]bool{
		{SaleStatusPending, SaleStatusConfirmed}: true,
		{SaleStatusPending, SaleStatusVoided}:    true,
		{SaleStatusConfirmed, SaleStatusVoided}:  true,
	}
	all := []SaleStatus{SaleStatusPending, SaleStatusConfirmed, SaleStatusVoided}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]SaleStatus{from, to}], from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestSaleStatusCounts(t *testing.T) {
	assert.True(t, SaleStatusPending.Counts())
	assert.True(t, SaleStatusConfirmed.Counts())
	assert.False(t, SaleStatusVoided.Counts())
}

func TestDomainErrorMatching(t *testing.T) {
	wrapped := fmt.Errorf("insert sale: %w", ErrDuplicateSale)

	assert.ErrorIs(t, wrapped, ErrDuplicateSale)
	assert.True(t, IsDomainError(wrapped, ErrCodeConflict))
	assert.False(t, IsDomainError(wrapped, ErrCodeNotFound))
	assert.NotErrorIs(t, wrapped, ErrCodeTaken)
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(fmt.Errorf("insert click: %w", ErrAffiliateNotFound)))
	assert.True(t, IsPermanent(ErrInvalidPayload))
	assert.False(t, IsPermanent(fmt.Errorf("dial tcp: %w", errors.New("connection refused"))))
	assert.False(t, IsPermanent(nil))
}
