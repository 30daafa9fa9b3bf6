package order

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/pkg/metrics"
	"github.com/fastygo/storefront/repository"
	"github.com/fastygo/storefront/usecase/ledger"
)

const maxItemQuantity = 1000

// AffiliateResolver maps a referral marker to the affiliate to credit.
type AffiliateResolver interface {
	ResolveOrderAffiliate(ctx context.Context, marker string) (*domain.Affiliate, error)
}

// SaleRecorder writes a ledger entry inside an open unit of work.
type SaleRecorder interface {
	Record(ctx context.Context, store repository.Store, in ledger.SaleInput) (*domain.AffiliateSale, error)
}

type ItemInput struct {
	ProductID string
	Quantity  int
}

type CreateInput struct {
	UserID          *string
	Email           string
	ShippingName    string
	ShippingAddress string
	ShippingCity    string
	ShippingState   string
	ShippingZip     string
	Items           []ItemInput
	// Marker is the raw referral marker presented with the request.
	Marker         string
	IdempotencyKey string
}

type UseCase struct {
	products    repository.ProductRepository
	orders      repository.OrderRepository
	tx          repository.Transactor
	resolver    AffiliateResolver
	sales       SaleRecorder
	idempotency repository.IdempotencyRepository
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func New(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	tx repository.Transactor,
	resolver AffiliateResolver,
	sales SaleRecorder,
	idempotency repository.IdempotencyRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		products:    products,
		orders:      orders,
		tx:          tx,
		resolver:    resolver,
		sales:       sales,
		idempotency: idempotency,
		metrics:     m,
		logger:      logger,
	}
}

// CreateOrder prices the cart from the catalog, decides attribution once, and
// persists the order together with its ledger entry and counter update.
func (uc *UseCase) CreateOrder(ctx context.Context, in CreateInput) (*domain.Order, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	var key, fp string
	reserved := false
	if in.IdempotencyKey != "" && uc.idempotency != nil {
		key, fp = idempotencyKey(in), fingerprint(in)
		existing, ok, err := uc.reserve(ctx, key, fp)
		if err != nil || existing != nil {
			return existing, err
		}
		reserved = ok
	}

	order, sale, err := uc.place(ctx, in)
	if err != nil {
		if reserved {
			if relErr := uc.idempotency.Release(ctx, key); relErr != nil {
				uc.logger.Warn("failed to release idempotency key", zap.Error(relErr))
			}
		}
		return nil, err
	}
	if reserved {
		if err := uc.idempotency.Complete(ctx, key, fp, order.ID); err != nil {
			uc.logger.Warn("failed to store idempotency result", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	uc.metrics.ObserveOrder(order.IsAttributed())
	fields := []zap.Field{zap.String("order_id", order.ID), zap.String("total", order.Total.StringFixed(2))}
	if sale != nil {
		uc.metrics.ObserveSale(sale.Commission)
		fields = append(fields,
			zap.String("affiliate_id", sale.AffiliateID),
			zap.String("commission", sale.Commission.StringFixed(2)))
	}
	uc.logger.Info("order created", fields...)
	return order, nil
}

func (uc *UseCase) place(ctx context.Context, in CreateInput) (*domain.Order, *domain.AffiliateSale, error) {
	order, err := uc.buildOrder(ctx, in)
	if err != nil {
		return nil, nil, err
	}

	affiliate, err := uc.resolver.ResolveOrderAffiliate(ctx, in.Marker)
	if err != nil {
		return nil, nil, err
	}
	if affiliate != nil {
		order.AffiliateID = &affiliate.ID
	}

	var sale *domain.AffiliateSale
	err = uc.tx.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		if err := store.Orders().Create(ctx, order); err != nil {
			return err
		}
		if affiliate == nil {
			return nil
		}
		var err error
		sale, err = uc.sales.Record(ctx, store, ledger.SaleInput{
			AffiliateID:    affiliate.ID,
			OrderID:        order.ID,
			OrderTotal:     order.Total,
			CommissionRate: affiliate.CommissionRate,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return order, sale, nil
}

func (uc *UseCase) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return uc.orders.GetByID(ctx, id)
}

func (uc *UseCase) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, error) {
	return uc.orders.List(ctx, filter)
}

// reserve claims the idempotency key. It returns the stored order when the
// key was already completed by the same request, and reserved=false when the
// key store is down.
func (uc *UseCase) reserve(ctx context.Context, key, fp string) (*domain.Order, bool, error) {
	ok, err := uc.idempotency.Reserve(ctx, key, fp)
	if err != nil {
		uc.logger.Warn("idempotency store unavailable", zap.Error(err))
		return nil, false, nil
	}
	if ok {
		return nil, true, nil
	}

	record, err := uc.idempotency.Lookup(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if record == nil || record.OrderID == "" {
		return nil, false, domain.ErrIdempotencyConflict
	}
	if record.Fingerprint != fp {
		return nil, false, domain.ErrIdempotencyReused
	}
	existing, err := uc.orders.GetByID(ctx, record.OrderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (uc *UseCase) buildOrder(ctx context.Context, in CreateInput) (*domain.Order, error) {
	order := &domain.Order{
		UserID:          in.UserID,
		Email:           strings.TrimSpace(in.Email),
		Status:          domain.OrderStatusPending,
		ShippingName:    strings.TrimSpace(in.ShippingName),
		ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		ShippingCity:    strings.TrimSpace(in.ShippingCity),
		ShippingState:   strings.TrimSpace(in.ShippingState),
		ShippingZip:     strings.TrimSpace(in.ShippingZip),
		Items:           make([]domain.OrderItem, 0, len(in.Items)),
	}

	total := decimal.Zero
	for _, item := range in.Items {
		product, err := uc.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return nil, domain.WrapError(domain.ErrCodeInvalid, "unknown product "+item.ProductID, err)
			}
			return nil, err
		}
		if !product.InStock {
			return nil, domain.ErrProductOutOfStock
		}
		line := domain.OrderItem{ProductID: product.ID, Quantity: item.Quantity, Price: product.Price}
		order.Items = append(order.Items, line)
		total = total.Add(line.LineTotal())
	}

	order.Total = total.Round(2)
	if err := domain.ValidateMoney(order.Total); err != nil {
		return nil, err
	}
	return order, nil
}

func validate(in CreateInput) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil {
		return domain.NewError(domain.ErrCodeInvalid, "invalid email")
	}
	required := []struct{ field, value string }{
		{"shipping_name", in.ShippingName},
		{"shipping_address", in.ShippingAddress},
		{"shipping_city", in.ShippingCity},
		{"shipping_state", in.ShippingState},
		{"shipping_zip", in.ShippingZip},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domain.NewError(domain.ErrCodeInvalid, r.field+" is required")
		}
	}
	if len(in.Items) == 0 {
		return domain.NewError(domain.ErrCodeInvalid, "order has no items")
	}
	for _, item := range in.Items {
		if item.ProductID == "" {
			return domain.NewError(domain.ErrCodeInvalid, "item product_id is required")
		}
		if item.Quantity <= 0 || item.Quantity > maxItemQuantity {
			return domain.NewError(domain.ErrCodeInvalid, "invalid item quantity")
		}
	}
	return nil
}
