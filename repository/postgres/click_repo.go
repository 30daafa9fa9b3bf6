package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/repository"
)

type clickRepository struct {
	q Querier
}

// NewClickRepository returns an append-only Postgres click log.
func NewClickRepository(q Querier) repository.ClickRepository {
	return &clickRepository{q: q}
}

func (r *clickRepository) Create(ctx context.Context, click *domain.AffiliateClick) error {
	if click == nil || click.AffiliateID == "" {
		return domain.ErrInvalidPayload
	}
	if click.ID == "" {
		click.ID = uuid.NewString()
	}

	// Replayed buffer items carry their original id; a second insert is a no-op.
	const query = `
	INSERT INTO affiliate_clicks (id, affiliate_id, product_id, ip_address, user_agent, created_at)
	VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), COALESCE($6, NOW()))
	ON CONFLICT (id) DO NOTHING
	RETURNING created_at
	`
	err := r.q.QueryRow(ctx, query,
		click.ID,
		click.AffiliateID,
		click.ProductID,
		click.IPAddress,
		click.UserAgent,
		nullTime(click.CreatedAt),
	).Scan(&click.CreatedAt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrDuplicateClick
	case foreignKeyViolationOn(err, "affiliate_clicks_affiliate_id_fkey"):
		return domain.ErrAffiliateNotFound
	case foreignKeyViolationOn(err, "affiliate_clicks_product_id_fkey"):
		return domain.ErrProductNotFound
	default:
		return fmt.Errorf("insert click: %w", err)
	}
}
