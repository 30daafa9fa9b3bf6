package usecase

import (
	"context"

	"github.com/fastygo/storefront/domain"
)

// ClickBuffer parks clicks that could not be written so they are replayed later.
type ClickBuffer interface {
	BufferClick(ctx context.Context, click *domain.AffiliateClick) error
}
