package attribution

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/pkg/metrics"
	"github.com/fastygo/storefront/pkg/refcode"
	"github.com/fastygo/storefront/repository"
	"github.com/fastygo/storefront/usecase"
)

// MarkerDecoder turns a stored referral marker back into an affiliate code.
type MarkerDecoder interface {
	Decode(value string) (string, error)
}

// ClickResult is returned for a referral visit that resolved to an affiliate.
type ClickResult struct {
	Affiliate *domain.Affiliate
	Click     *domain.AffiliateClick
	// Buffered is set when the click was parked for replay instead of written.
	Buffered bool
}

type UseCase struct {
	affiliates repository.AffiliateRepository
	tx         repository.Transactor
	markers    MarkerDecoder
	buffer     usecase.ClickBuffer
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func New(
	affiliates repository.AffiliateRepository,
	tx repository.Transactor,
	markers MarkerDecoder,
	buffer usecase.ClickBuffer,
	m *metrics.Metrics,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		affiliates: affiliates,
		tx:         tx,
		markers:    markers,
		buffer:     buffer,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// ResolveClick records a visit carrying a referral code. Unknown, malformed
// and inactive codes resolve to nil with no error and leave no trace.
//
// A click whose write fails after the code resolved is parked in the buffer
// and the result is still returned. If the lookup itself fails nothing is
// buffered, since the affiliate is unknown.
func (uc *UseCase) ResolveClick(ctx context.Context, code string, productID *string, meta domain.RequestMeta) (*ClickResult, error) {
	affiliate, err := uc.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		uc.metrics.ObserveClick(metrics.ClickIgnored)
		return nil, nil
	}

	click := &domain.AffiliateClick{
		ID:          uuid.NewString(),
		AffiliateID: affiliate.ID,
		ProductID:   productID,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		CreatedAt:   uc.now().UTC(),
	}

	if err := uc.RecordClick(ctx, click); err != nil {
		// only store outages are worth replaying
		if domain.IsPermanent(err) || !uc.bufferClick(ctx, click) {
			return nil, err
		}
		uc.metrics.ObserveClick(metrics.ClickBuffered)
		return &ClickResult{Affiliate: affiliate, Click: click, Buffered: true}, nil
	}

	uc.metrics.ObserveClick(metrics.ClickRecorded)
	return &ClickResult{Affiliate: affiliate, Click: click}, nil
}

// RecordClick appends the click and bumps the affiliate's click counter in one
// transaction. Replaying a click that is already stored is a no-op.
func (uc *UseCase) RecordClick(ctx context.Context, click *domain.AffiliateClick) error {
	if click == nil || click.ID == "" || click.AffiliateID == "" {
		return domain.ErrInvalidPayload
	}
	err := uc.tx.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		if err := store.Clicks().Create(ctx, click); err != nil {
			return err
		}
		return store.Stats().RecordClick(ctx, click.AffiliateID)
	})
	if errors.Is(err, domain.ErrDuplicateClick) {
		uc.logger.Debug("affiliate click already recorded", zap.String("click_id", click.ID))
		return nil
	}
	return err
}

// ResolveOrderAffiliate returns the affiliate a checkout should be credited to,
// or nil when the marker is absent, tampered, expired or names no active
// affiliate. It never writes.
func (uc *UseCase) ResolveOrderAffiliate(ctx context.Context, marker string) (*domain.Affiliate, error) {
	if marker == "" || uc.markers == nil {
		return nil, nil
	}
	code, err := uc.markers.Decode(marker)
	if err != nil {
		uc.logger.Debug("ignoring referral marker", zap.Error(err))
		return nil, nil
	}
	return uc.lookup(ctx, code)
}

func (uc *UseCase) lookup(ctx context.Context, code string) (*domain.Affiliate, error) {
	code = refcode.Normalize(code)
	if !refcode.Valid(code) {
		return nil, nil
	}
	affiliate, err := uc.affiliates.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrAffiliateNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !affiliate.IsActive() {
		return nil, nil
	}
	return affiliate, nil
}

func (uc *UseCase) bufferClick(ctx context.Context, click *domain.AffiliateClick) bool {
	if uc.buffer == nil {
		return false
	}
	if err := uc.buffer.BufferClick(ctx, click); err != nil {
		uc.logger.Error("failed to buffer affiliate click", zap.String("affiliate_id", click.AffiliateID), zap.Error(err))
		return false
	}
	uc.logger.Warn("affiliate click buffered", zap.String("affiliate_id", click.AffiliateID))
	return true
}
