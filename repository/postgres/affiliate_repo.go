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

const affiliateColumns = `id, user_id, affiliate_code, commission_rate, total_clicks, total_sales, total_commission, status, created_at, updated_at`

type affiliateRepository struct {
	q Querier
}

// NewAffiliateRepository returns a Postgres-backed AffiliateRepository.
func NewAffiliateRepository(q Querier) repository.AffiliateRepository {
	return &affiliateRepository{q: q}
}

func (r *affiliateRepository) GetByID(ctx context.Context, id string) (*domain.Affiliate, error) {
	row := r.q.QueryRow(ctx, `SELECT `+affiliateColumns+` FROM affiliates WHERE id = $1`, id)
	return scanAffiliate(row)
}

func (r *affiliateRepository) GetByCode(ctx context.Context, code string) (*domain.Affiliate, error) {
	row := r.q.QueryRow(ctx, `SELECT `+affiliateColumns+` FROM affiliates WHERE affiliate_code = $1`, code)
	return scanAffiliate(row)
}

func (r *affiliateRepository) GetByUserID(ctx context.Context, userID string) (*domain.Affiliate, error) {
	row := r.q.QueryRow(ctx, `SELECT `+affiliateColumns+` FROM affiliates WHERE user_id = $1`, userID)
	return scanAffiliate(row)
}

func (r *affiliateRepository) List(ctx context.Context, filter repository.AffiliateFilter) ([]domain.Affiliate, error) {
	query := `
	SELECT ` + affiliateColumns + `
	FROM affiliates
	WHERE ($1 = '' OR status = $1)
	ORDER BY created_at DESC
	LIMIT $2 OFFSET $3
	`
	rows, err := r.q.Query(ctx, query, filter.Status, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var affiliates []domain.Affiliate
	for rows.Next() {
		affiliate, err := scanAffiliate(rows)
		if err != nil {
			return nil, err
		}
		affiliates = append(affiliates, *affiliate)
	}
	return affiliates, rows.Err()
}

func (r *affiliateRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM affiliates ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *affiliateRepository) Create(ctx context.Context, affiliate *domain.Affiliate) error {
	if affiliate == nil {
		return domain.ErrInvalidPayload
	}
	if affiliate.ID == "" {
		affiliate.ID = uuid.NewString()
	}
	if affiliate.Status == "" {
		affiliate.Status = domain.AffiliateStatusActive
	}
	if affiliate.CommissionRate.IsZero() {
		affiliate.CommissionRate = domain.DefaultCommissionRate
	}

	const query = `
	INSERT INTO affiliates (id, user_id, affiliate_code, commission_rate, status)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING total_clicks, total_sales, total_commission, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		affiliate.ID,
		affiliate.UserID,
		affiliate.Code,
		affiliate.CommissionRate,
		affiliate.Status,
	).Scan(&affiliate.TotalClicks, &affiliate.TotalSales, &affiliate.TotalCommission, &affiliate.CreatedAt, &affiliate.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case uniqueViolationOn(err, "affiliates_affiliate_code_key"):
		return domain.ErrCodeTaken
	case uniqueViolationOn(err, "affiliates_user_id_key"):
		return domain.ErrAffiliateExists
	default:
		return fmt.Errorf("insert affiliate: %w", err)
	}
}

func scanAffiliate(row rowScanner) (*domain.Affiliate, error) {
	var affiliate domain.Affiliate
	if err := row.Scan(
		&affiliate.ID,
		&affiliate.UserID,
		&affiliate.Code,
		&affiliate.CommissionRate,
		&affiliate.TotalClicks,
		&affiliate.TotalSales,
		&affiliate.TotalCommission,
		&affiliate.Status,
		&affiliate.CreatedAt,
		&affiliate.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAffiliateNotFound
		}
		return nil, err
	}
	return &affiliate, nil
}
