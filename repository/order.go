package repository

import (
	"context"

	"github.com/fastygo/storefront/domain"
)

type OrderFilter struct {
	AffiliateID string
	Status      string
	Limit       int
	Offset      int
}

type OrderRepository interface {
	// Create inserts the order together with its items.
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
}

type ProductRepository interface {
	// Create returns domain.ErrProductSlugTaken when the slug is in use.
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	List(ctx context.Context, limit, offset int) ([]domain.Product, error)
}

// IdempotencyRecord is what a checkout key is bound to. An empty OrderID means
// the original request is still in flight.
type IdempotencyRecord struct {
	OrderID     string
	Fingerprint string
}

// IdempotencyRepository guards checkout submissions against replays.
type IdempotencyRepository interface {
	// Reserve claims key for a request with the given fingerprint; it returns
	// false when the key is already held.
	Reserve(ctx context.Context, key, fingerprint string) (bool, error)
	// Lookup returns nil when the key is not held.
	Lookup(ctx context.Context, key string) (*IdempotencyRecord, error)
	Complete(ctx context.Context, key, fingerprint, orderID string) error
	Release(ctx context.Context, key string) error
}
