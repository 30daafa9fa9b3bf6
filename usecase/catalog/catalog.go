package catalog

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/repository"
)

const (
	maxSlugLength = 255
	maxNameLength = 255
)

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	// numeric(12,2)
	maxPrice = decimal.RequireFromString("9999999999.99")
)

// ProductInput is an admin-supplied catalog entry. InStock defaults to true.
type ProductInput struct {
	Slug        string
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	InStock     *bool
}

// UseCase serves the product catalog.
type UseCase struct {
	products repository.ProductRepository
	logger   *zap.Logger
}

func New(products repository.ProductRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{products: products, logger: logger}
}

func (uc *UseCase) ListProducts(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	return uc.products.List(ctx, limit, offset)
}

func (uc *UseCase) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	slug = strings.TrimSpace(strings.ToLower(slug))
	if slug == "" {
		return nil, domain.ErrProductNotFound
	}
	return uc.products.GetBySlug(ctx, slug)
}

// CreateProduct adds a catalog entry. Slugs are stored lower-case.
func (uc *UseCase) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	product := &domain.Product{
		Slug:        strings.TrimSpace(strings.ToLower(in.Slug)),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		InStock:     in.InStock == nil || *in.InStock,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := uc.products.Create(ctx, product); err != nil {
		return nil, err
	}
	uc.logger.Info("product created",
		zap.String("product_id", product.ID),
		zap.String("slug", product.Slug),
		zap.String("price", product.Price.StringFixed(2)))
	return product, nil
}

func validateProduct(p *domain.Product) error {
	if p.Slug == "" || len(p.Slug) > maxSlugLength || !slugPattern.MatchString(p.Slug) {
		return domain.NewError(domain.ErrCodeInvalid, "invalid slug")
	}
	if p.Name == "" || len(p.Name) > maxNameLength {
		return domain.NewError(domain.ErrCodeInvalid, "name is required")
	}
	if err := domain.ValidateMoney(p.Price); err != nil {
		return err
	}
	if p.Price.GreaterThan(maxPrice) {
		return domain.ErrInvalidAmount
	}
	return nil
}
