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

const orderColumns = `id, user_id, email, total, status, shipping_name, shipping_address, shipping_city, shipping_state, shipping_zip, affiliate_id, created_at, updated_at`

type orderRepository struct {
	q Querier
}

// NewOrderRepository returns a Postgres-backed OrderRepository. Orders expose no
// update statement; affiliate_id is written once on insert.
func NewOrderRepository(q Querier) repository.OrderRepository {
	return &orderRepository{q: q}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order == nil {
		return domain.ErrInvalidPayload
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}

	const query = `
	INSERT INTO orders (id, user_id, email, total, status, shipping_name, shipping_address, shipping_city, shipping_state, shipping_zip, affiliate_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING created_at, updated_at
	`
	if err := r.q.QueryRow(ctx, query,
		order.ID,
		order.UserID,
		order.Email,
		order.Total,
		order.Status,
		order.ShippingName,
		order.ShippingAddress,
		order.ShippingCity,
		order.ShippingState,
		order.ShippingZip,
		order.AffiliateID,
	).Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	const itemQuery = `
	INSERT INTO order_items (id, order_id, product_id, quantity, price)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at
	`
	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.OrderID = order.ID
		if err := r.q.QueryRow(ctx, itemQuery, item.ID, item.OrderID, item.ProductID, item.Quantity, item.Price).Scan(&item.CreatedAt); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	items, err := r.items(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, error) {
	query := `
	SELECT ` + orderColumns + `
	FROM orders
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

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func (r *orderRepository) items(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	const query = `
	SELECT id, order_id, product_id, quantity, price, created_at
	FROM order_items
	WHERE order_id = $1
	ORDER BY created_at, id
	`
	rows, err := r.q.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	if err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Email,
		&order.Total,
		&order.Status,
		&order.ShippingName,
		&order.ShippingAddress,
		&order.ShippingCity,
		&order.ShippingState,
		&order.ShippingZip,
		&order.AffiliateID,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}
