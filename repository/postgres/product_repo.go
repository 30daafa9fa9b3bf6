package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/repository"
)

const productColumns = `id, slug, name, description, price, image_url, in_stock, created_at, updated_at`

type productRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a Postgres-backed catalog repository.
func NewProductRepository(pool *pgxpool.Pool) repository.ProductRepository {
	return &productRepository{pool: pool}
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	if product == nil {
		return domain.ErrInvalidPayload
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO products (id, slug, name, description, price, image_url, in_stock)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		product.ID,
		product.Slug,
		product.Name,
		product.Description,
		product.Price,
		product.ImageURL,
		product.InStock,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case uniqueViolationOn(err, "products_slug_key"):
		return domain.ErrProductSlugTaken
	default:
		return fmt.Errorf("insert product: %w", err)
	}
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (r *productRepository) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug))
}

func (r *productRepository) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name LIMIT $1 OFFSET $2`, clampLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	return products, rows.Err()
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		product domain.Product
		image   *string
	)
	if err := row.Scan(
		&product.ID,
		&product.Slug,
		&product.Name,
		&product.Description,
		&product.Price,
		&image,
		&product.InStock,
		&product.CreatedAt,
		&product.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	if image != nil {
		product.ImageURL = *image
	}
	return &product, nil
}
