package affiliate

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/pkg/refcode"
	"github.com/fastygo/storefront/repository"
)

// CodeGenerator produces candidate referral codes.
type CodeGenerator func() (string, error)

type Config struct {
	DefaultRate  decimal.Decimal
	CodeAttempts int
}

// Dashboard is what an affiliate sees about their own account.
type Dashboard struct {
	Affiliate *domain.Affiliate      `json:"affiliate"`
	Sales     []domain.AffiliateSale `json:"recent_sales"`
}

type UseCase struct {
	affiliates repository.AffiliateRepository
	sales      repository.SaleRepository
	generate   CodeGenerator
	cfg        Config
	logger     *zap.Logger
}

func New(
	affiliates repository.AffiliateRepository,
	sales repository.SaleRepository,
	generate CodeGenerator,
	cfg Config,
	logger *zap.Logger,
) *UseCase {
	if generate == nil {
		generate = func() (string, error) { return refcode.Generate(refcode.DefaultBytes) }
	}
	if cfg.DefaultRate.IsZero() {
		cfg.DefaultRate = domain.DefaultCommissionRate
	}
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		affiliates: affiliates,
		sales:      sales,
		generate:   generate,
		cfg:        cfg,
		logger:     logger,
	}
}

// Enroll creates the affiliate account for userID with a fresh unique code.
// Code collisions are retried a bounded number of times.
func (uc *UseCase) Enroll(ctx context.Context, userID string) (*domain.Affiliate, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := domain.ValidateRate(uc.cfg.DefaultRate); err != nil {
		return nil, err
	}

	if _, err := uc.affiliates.GetByUserID(ctx, userID); err == nil {
		return nil, domain.ErrAffiliateExists
	} else if !errors.Is(err, domain.ErrAffiliateNotFound) {
		return nil, err
	}

	for attempt := 1; attempt <= uc.cfg.CodeAttempts; attempt++ {
		code, err := uc.generate()
		if err != nil {
			return nil, err
		}
		affiliate := &domain.Affiliate{
			UserID:         userID,
			Code:           code,
			CommissionRate: uc.cfg.DefaultRate,
			Status:         domain.AffiliateStatusActive,
		}
		err = uc.affiliates.Create(ctx, affiliate)
		if err == nil {
			uc.logger.Info("affiliate enrolled", zap.String("user_id", userID), zap.String("affiliate_id", affiliate.ID))
			return affiliate, nil
		}
		if !errors.Is(err, domain.ErrCodeTaken) {
			return nil, err
		}
		uc.logger.Warn("affiliate code collision", zap.Int("attempt", attempt))
	}
	return nil, domain.ErrCodeExhausted
}

func (uc *UseCase) GetByUser(ctx context.Context, userID string) (*domain.Affiliate, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return uc.affiliates.GetByUserID(ctx, userID)
}

func (uc *UseCase) Dashboard(ctx context.Context, userID string, limit int) (*Dashboard, error) {
	affiliate, err := uc.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sales, err := uc.sales.List(ctx, repository.SaleFilter{AffiliateID: affiliate.ID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return &Dashboard{Affiliate: affiliate, Sales: sales}, nil
}

// ListSales returns the caller's own ledger entries.
func (uc *UseCase) ListSales(ctx context.Context, userID string, filter repository.SaleFilter) ([]domain.AffiliateSale, error) {
	affiliate, err := uc.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	filter.AffiliateID = affiliate.ID
	return uc.sales.List(ctx, filter)
}

func (uc *UseCase) List(ctx context.Context, filter repository.AffiliateFilter) ([]domain.Affiliate, error) {
	return uc.affiliates.List(ctx, filter)
}
