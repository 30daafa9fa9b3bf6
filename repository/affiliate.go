package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fastygo/storefront/domain"
)

type AffiliateFilter struct {
	Status string
	Limit  int
	Offset int
}

type AffiliateRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Affiliate, error)
	GetByCode(ctx context.Context, code string) (*domain.Affiliate, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Affiliate, error)
	List(ctx context.Context, filter AffiliateFilter) ([]domain.Affiliate, error)
	ListIDs(ctx context.Context) ([]string, error)
	// Create returns domain.ErrCodeTaken when the code collides and
	// domain.ErrAffiliateExists when the user is already enrolled.
	Create(ctx context.Context, affiliate *domain.Affiliate) error
}

// AffiliateStatsRepository is the only writer of affiliate counters. Every
// mutation is a single atomic statement in the store.
type AffiliateStatsRepository interface {
	RecordClick(ctx context.Context, affiliateID string) error
	RecordSale(ctx context.Context, affiliateID string, commission decimal.Decimal) error
	ReverseSale(ctx context.Context, affiliateID string, commission decimal.Decimal) error

	// LockCounters reads the counters and holds the affiliate row until the
	// surrounding transaction ends.
	LockCounters(ctx context.Context, affiliateID string) (domain.AffiliateCounters, error)
	// LedgerCounters derives the counters from the click and sale tables.
	LedgerCounters(ctx context.Context, affiliateID string) (domain.AffiliateCounters, error)
	SetCounters(ctx context.Context, affiliateID string, counters domain.AffiliateCounters) error
}

type ClickRepository interface {
	// Create returns domain.ErrDuplicateClick when a click with the same id exists.
	Create(ctx context.Context, click *domain.AffiliateClick) error
}
