package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/repository"
)

type statsRepository struct {
	q Querier
}

// NewStatsRepository returns the Postgres stats aggregator. Counters are only
// ever changed with in-place arithmetic so concurrent requests never lose updates.
func NewStatsRepository(q Querier) repository.AffiliateStatsRepository {
	return &statsRepository{q: q}
}

func (r *statsRepository) RecordClick(ctx context.Context, affiliateID string) error {
	const query = `
	UPDATE affiliates
	SET total_clicks = total_clicks + 1,
		updated_at = NOW()
	WHERE id = $1
	`
	return r.exec(ctx, "record click", query, affiliateID)
}

func (r *statsRepository) RecordSale(ctx context.Context, affiliateID string, commission decimal.Decimal) error {
	const query = `
	UPDATE affiliates
	SET total_sales = total_sales + 1,
		total_commission = total_commission + $2,
		updated_at = NOW()
	WHERE id = $1
	`
	return r.exec(ctx, "record sale", query, affiliateID, commission)
}

func (r *statsRepository) ReverseSale(ctx context.Context, affiliateID string, commission decimal.Decimal) error {
	const query = `
	UPDATE affiliates
	SET total_sales = total_sales - 1,
		total_commission = total_commission - $2,
		updated_at = NOW()
	WHERE id = $1
	`
	return r.exec(ctx, "reverse sale", query, affiliateID, commission)
}

func (r *statsRepository) LockCounters(ctx context.Context, affiliateID string) (domain.AffiliateCounters, error) {
	// NO KEY UPDATE leaves FK inserts of clicks, sales and orders unblocked.
	const query = `
	SELECT total_clicks, total_sales, total_commission
	FROM affiliates
	WHERE id = $1
	FOR NO KEY UPDATE
	`
	var counters domain.AffiliateCounters
	err := r.q.QueryRow(ctx, query, affiliateID).Scan(&counters.Clicks, &counters.Sales, &counters.Commission)
	if errors.Is(err, pgx.ErrNoRows) {
		return counters, domain.ErrAffiliateNotFound
	}
	return counters, err
}

func (r *statsRepository) LedgerCounters(ctx context.Context, affiliateID string) (domain.AffiliateCounters, error) {
	const query = `
	SELECT
		(SELECT COUNT(*) FROM affiliate_clicks WHERE affiliate_id = $1),
		COUNT(s.id),
		COALESCE(SUM(s.commission), 0)
	FROM affiliate_sales s
	WHERE s.affiliate_id = $1 AND s.status <> 'voided'
	`
	var counters domain.AffiliateCounters
	err := r.q.QueryRow(ctx, query, affiliateID).Scan(&counters.Clicks, &counters.Sales, &counters.Commission)
	return counters, err
}

func (r *statsRepository) SetCounters(ctx context.Context, affiliateID string, counters domain.AffiliateCounters) error {
	const query = `
	UPDATE affiliates
	SET total_clicks = $2,
		total_sales = $3,
		total_commission = $4,
		updated_at = NOW()
	WHERE id = $1
	`
	return r.exec(ctx, "set counters", query, affiliateID, counters.Clicks, counters.Sales, counters.Commission)
}

func (r *statsRepository) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAffiliateNotFound
	}
	return nil
}
