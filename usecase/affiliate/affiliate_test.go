package affiliate

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/pkg/refcode"
	"github.com/fastygo/storefront/repository"
	"github.com/fastygo/storefront/repository/memory"
)

func sequence(codes ...string) CodeGenerator {
	i := 0
	return func() (string, error) {
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}

func TestEnrollAssignsUniqueCode(t *testing.T) {
	db := memory.New()
	store := db.Store()
	uc := New(store.Affiliates(), store.Sales(), nil, Config{}, nil)

	a, err := uc.Enroll(context.Background(), "user-1")
	require.NoError(t, err)
	b, err := uc.Enroll(context.Background(), "user-2")
	require.NoError(t, err)

	assert.True(t, refcode.Valid(a.Code))
	assert.NotEqual(t, a.Code, b.Code)
	assert.True(t, a.CommissionRate.Equal(domain.DefaultCommissionRate))
	assert.Equal(t, domain.AffiliateStatusActive, a.Status)
	assert.Zero(t, a.TotalClicks)
}

func TestEnrollRetriesOnCollision(t *testing.T) {
	db := memory.New()
	store := db.Store()
	uc := New(store.Affiliates(), store.Sales(), sequence("AAAA", "AAAA", "BBBB"), Config{}, nil)

	first, err := uc.Enroll(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "AAAA", first.Code)

	second, err := uc.Enroll(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Equal(t, "BBBB", second.Code)
}

func TestEnrollGivesUpAfterBoundedAttempts(t *testing.T) {
	db := memory.New()
	store := db.Store()
	uc := New(store.Affiliates(), store.Sales(), sequence("AAAA"), Config{CodeAttempts: 3}, nil)

	_, err := uc.Enroll(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = uc.Enroll(context.Background(), "user-2")
	assert.ErrorIs(t, err, domain.ErrCodeExhausted)
}

func TestEnrollRejectsSecondAccount(t *testing.T) {
	db := memory.New()
	store := db.Store()
	uc := New(store.Affiliates(), store.Sales(), nil, Config{DefaultRate: decimal.RequireFromString("12.5")}, nil)

	a, err := uc.Enroll(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, a.CommissionRate.Equal(decimal.RequireFromString("12.5")))

	_, err = uc.Enroll(context.Background(), "user-1")
	assert.ErrorIs(t, err, domain.ErrAffiliateExists)

	_, err = uc.Enroll(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestEnrollPropagatesGeneratorFailure(t *testing.T) {
	db := memory.New()
	store := db.Store()
	boom := errors.New("entropy exhausted")
	uc := New(store.Affiliates(), store.Sales(), func() (string, error) { return "", boom }, Config{}, nil)

	_, err := uc.Enroll(context.Background(), "user-1")
	assert.ErrorIs(t, err, boom)
}

func TestDashboardAndSales(t *testing.T) {
	db := memory.New()
	store := db.Store()
	uc := New(store.Affiliates(), store.Sales(), nil, Config{}, nil)

	_, err := uc.Dashboard(context.Background(), "user-1", 10)
	assert.ErrorIs(t, err, domain.ErrAffiliateNotFound)

	a, err := uc.Enroll(context.Background(), "user-1")
	require.NoError(t, err)

	order := &domain.Order{Email: "shopper@example.com", Total: decimal.RequireFromString("20.00"), AffiliateID: &a.ID}
	require.NoError(t, store.Orders().Create(context.Background(), order))
	require.NoError(t, store.Sales().Create(context.Background(), &domain.AffiliateSale{
		AffiliateID:    a.ID,
		OrderID:        order.ID,
		OrderTotal:     order.Total,
		CommissionRate: a.CommissionRate,
		Commission:     decimal.RequireFromString("2.00"),
	}))

	dash, err := uc.Dashboard(context.Background(), "user-1", 10)
	require.NoError(t, err)
	assert.Equal(t, a.ID, dash.Affiliate.ID)
	assert.Len(t, dash.Sales, 1)

	sales, err := uc.ListSales(context.Background(), "user-1", repository.SaleFilter{AffiliateID: "someone-else"})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, a.ID, sales[0].AffiliateID)
}
