package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AffiliateStatusActive   = "active"
	AffiliateStatusInactive = "inactive"
)

// DefaultCommissionRate is applied to affiliates enrolled without an explicit rate.
var DefaultCommissionRate = decimal.NewFromInt(10)

// Affiliate is a partner credited for orders placed under its referral code.
// The counters are owned by the stats aggregator and only change through atomic
// increments in the store.
type Affiliate struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Code            string          `json:"affiliate_code"`
	CommissionRate  decimal.Decimal `json:"commission_rate"`
	TotalClicks     int64           `json:"total_clicks"`
	TotalSales      int64           `json:"total_sales"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (a *Affiliate) IsActive() bool {
	return a != nil && a.Status == AffiliateStatusActive
}

// AffiliateClick is an immutable record of a resolved referral visit.
type AffiliateClick struct {
	ID          string    `json:"id"`
	AffiliateID string    `json:"affiliate_id"`
	ProductID   *string   `json:"product_id,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RequestMeta carries requester details captured with a click.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// AffiliateCounters is the rolling statistics block of an affiliate.
type AffiliateCounters struct {
	Clicks     int64           `json:"clicks"`
	Sales      int64           `json:"sales"`
	Commission decimal.Decimal `json:"commission"`
}

func (c AffiliateCounters) Equal(other AffiliateCounters) bool {
	return c.Clicks == other.Clicks && c.Sales == other.Sales && c.Commission.Equal(other.Commission)
}

// Counters returns the affiliate's current statistics block.
func (a *Affiliate) Counters() AffiliateCounters {
	if a == nil {
		return AffiliateCounters{}
	}
	return AffiliateCounters{Clicks: a.TotalClicks, Sales: a.TotalSales, Commission: a.TotalCommission}
}

// AffiliateStatsDrift describes an affiliate whose counters disagreed with the
// click and sale tables when reconciled.
type AffiliateStatsDrift struct {
	AffiliateID string            `json:"affiliate_id"`
	Previous    AffiliateCounters `json:"previous"`
	Reconciled  AffiliateCounters `json:"reconciled"`
}
