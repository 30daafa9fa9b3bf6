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

const saleColumns = `id, affiliate_id, order_id, order_total, commission_rate, commission, status, created_at, updated_at`

type saleRepository struct {
	q Querier
}

// NewSaleRepository returns the Postgres-backed sale ledger.
func NewSaleRepository(q Querier) repository.SaleRepository {
	return &saleRepository{q: q}
}

func (r *saleRepository) Create(ctx context.Context, sale *domain.AffiliateSale) error {
	if sale == nil || sale.AffiliateID == "" || sale.OrderID == "" {
		return domain.ErrInvalidPayload
	}
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusPending
	}

	const query = `
	INSERT INTO affiliate_sales (id, affiliate_id, order_id, order_total, commission_rate, commission, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query,
		sale.ID,
		sale.AffiliateID,
		sale.OrderID,
		sale.OrderTotal,
		sale.CommissionRate,
		sale.Commission,
		string(sale.Status),
	).Scan(&sale.CreatedAt, &sale.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case uniqueViolationOn(err, "affiliate_sales_order_id_key"):
		return domain.ErrDuplicateSale
	default:
		return fmt.Errorf("insert affiliate sale: %w", err)
	}
}

func (r *saleRepository) GetByID(ctx context.Context, id string) (*domain.AffiliateSale, error) {
	row := r.q.QueryRow(ctx, `SELECT `+saleColumns+` FROM affiliate_sales WHERE id = $1`, id)
	return scanSale(row)
}

func (r *saleRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.AffiliateSale, error) {
	row := r.q.QueryRow(ctx, `SELECT `+saleColumns+` FROM affiliate_sales WHERE order_id = $1`, orderID)
	return scanSale(row)
}

func (r *saleRepository) List(ctx context.Context, filter repository.SaleFilter) ([]domain.AffiliateSale, error) {
	query := `
	SELECT ` + saleColumns + `
	FROM affiliate_sales
	WHERE ($1 = '' OR affiliate_id::text = $1)
	  AND ($2 = '' OR status = $2)
	ORDER BY created_at DESC
	LIMIT $3 OFFSET $4
	`
	rows, err := r.q.Query(ctx, query, filter.AffiliateID, filter.Status, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []domain.AffiliateSale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

func (r *saleRepository) UpdateStatus(ctx context.Context, id string, from, to domain.SaleStatus) (*domain.AffiliateSale, error) {
	if !from.CanTransition(to) {
		return nil, domain.ErrInvalidTransition
	}
	query := `
	UPDATE affiliate_sales
	SET status = $3,
		updated_at = NOW()
	WHERE id = $1 AND status = $2
	RETURNING ` + saleColumns
	sale, err := scanSale(r.q.QueryRow(ctx, query, id, string(from), string(to)))
	if errors.Is(err, domain.ErrSaleNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, domain.ErrInvalidTransition
	}
	return sale, err
}

func scanSale(row rowScanner) (*domain.AffiliateSale, error) {
	var (
		sale   domain.AffiliateSale
		status string
	)
	if err := row.Scan(
		&sale.ID,
		&sale.AffiliateID,
		&sale.OrderID,
		&sale.OrderTotal,
		&sale.CommissionRate,
		&sale.Commission,
		&status,
		&sale.CreatedAt,
		&sale.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSaleNotFound
		}
		return nil, err
	}
	sale.Status = domain.SaleStatus(status)
	return &sale, nil
}
