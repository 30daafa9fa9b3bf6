package repository

import "context"

// Store groups the repositories that take part in one unit of work.
type Store interface {
	Affiliates() AffiliateRepository
	Stats() AffiliateStatsRepository
	Clicks() ClickRepository
	Sales() SaleRepository
	Orders() OrderRepository
}

// Transactor runs fn against a transaction-scoped Store. The transaction
// commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}
