package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus is the bookkeeping state of a ledger entry.
type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusConfirmed SaleStatus = "confirmed"
	SaleStatusVoided    SaleStatus = "voided"
)

var saleTransitions = map[SaleStatus][]SaleStatus{
	SaleStatusPending:   {SaleStatusConfirmed, SaleStatusVoided},
	SaleStatusConfirmed: {SaleStatusVoided},
}

// CanTransition reports whether a sale may move from one status to another.
// Voided is terminal.
func (s SaleStatus) CanTransition(to SaleStatus) bool {
	for _, next := range saleTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Counts reports whether a sale in this status contributes to affiliate totals.
func (s SaleStatus) Counts() bool {
	return s == SaleStatusPending || s == SaleStatusConfirmed
}

// AffiliateSale is the ledger entry for one attributed order.
type AffiliateSale struct {
	ID             string          `json:"id"`
	AffiliateID    string          `json:"affiliate_id"`
	OrderID        string          `json:"order_id"`
	OrderTotal     decimal.Decimal `json:"order_total"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	Commission     decimal.Decimal `json:"commission"`
	Status         SaleStatus      `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
