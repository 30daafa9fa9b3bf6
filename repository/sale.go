package repository

import (
	"context"

	"github.com/fastygo/storefront/domain"
)

type SaleFilter struct {
	AffiliateID string
	Status      string
	Limit       int
	Offset      int
}

type SaleRepository interface {
	// Create returns domain.ErrDuplicateSale when the order already has a sale.
	Create(ctx context.Context, sale *domain.AffiliateSale) error
	GetByID(ctx context.Context, id string) (*domain.AffiliateSale, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.AffiliateSale, error)
	List(ctx context.Context, filter SaleFilter) ([]domain.AffiliateSale, error)
	// UpdateStatus moves a sale from one status to another and returns
	// domain.ErrInvalidTransition when the sale is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to domain.SaleStatus) (*domain.AffiliateSale, error)
}
