package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/pkg/metrics"
	"github.com/fastygo/storefront/repository"
)

// SaleInput describes an attributed order to be credited.
type SaleInput struct {
	AffiliateID    string
	OrderID        string
	OrderTotal     decimal.Decimal
	CommissionRate decimal.Decimal
}

type UseCase struct {
	affiliates repository.AffiliateRepository
	sales      repository.SaleRepository
	tx         repository.Transactor
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func New(
	affiliates repository.AffiliateRepository,
	sales repository.SaleRepository,
	tx repository.Transactor,
	m *metrics.Metrics,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		affiliates: affiliates,
		sales:      sales,
		tx:         tx,
		metrics:    m,
		logger:     logger,
	}
}

// RecordSale credits an order in its own transaction.
func (uc *UseCase) RecordSale(ctx context.Context, in SaleInput) (*domain.AffiliateSale, error) {
	var sale *domain.AffiliateSale
	err := uc.tx.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		var err error
		sale, err = uc.Record(ctx, store, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.ObserveSale(sale.Commission)
	return sale, nil
}

// Record appends the ledger entry and bumps the affiliate's sale counters
// through store, so both land in the caller's transaction. A second sale for
// the same order fails with domain.ErrDuplicateSale and changes nothing.
func (uc *UseCase) Record(ctx context.Context, store repository.Store, in SaleInput) (*domain.AffiliateSale, error) {
	if in.AffiliateID == "" || in.OrderID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if err := domain.ValidateMoney(in.OrderTotal); err != nil {
		return nil, err
	}
	if err := domain.ValidateRate(in.CommissionRate); err != nil {
		return nil, err
	}

	sale := &domain.AffiliateSale{
		AffiliateID:    in.AffiliateID,
		OrderID:        in.OrderID,
		OrderTotal:     in.OrderTotal,
		CommissionRate: in.CommissionRate,
		Commission:     domain.ComputeCommission(in.OrderTotal, in.CommissionRate),
		Status:         domain.SaleStatusPending,
	}

	if err := store.Sales().Create(ctx, sale); err != nil {
		if errors.Is(err, domain.ErrDuplicateSale) {
			uc.logger.Error("duplicate affiliate sale rejected",
				zap.String("order_id", in.OrderID),
				zap.String("affiliate_id", in.AffiliateID))
			uc.metrics.ObserveDuplicateSale()
		}
		return nil, err
	}
	if err := store.Stats().RecordSale(ctx, in.AffiliateID, sale.Commission); err != nil {
		return nil, err
	}
	return sale, nil
}

func (uc *UseCase) GetSale(ctx context.Context, id string) (*domain.AffiliateSale, error) {
	return uc.sales.GetByID(ctx, id)
}

func (uc *UseCase) ListSales(ctx context.Context, filter repository.SaleFilter) ([]domain.AffiliateSale, error) {
	return uc.sales.List(ctx, filter)
}

// ConfirmSale marks a pending sale as confirmed. Counters are unchanged.
func (uc *UseCase) ConfirmSale(ctx context.Context, id string) (*domain.AffiliateSale, error) {
	return uc.transition(ctx, id, domain.SaleStatusConfirmed)
}

// VoidSale cancels a sale and takes it back out of the affiliate's counters.
func (uc *UseCase) VoidSale(ctx context.Context, id string) (*domain.AffiliateSale, error) {
	return uc.transition(ctx, id, domain.SaleStatusVoided)
}

func (uc *UseCase) transition(ctx context.Context, id string, to domain.SaleStatus) (*domain.AffiliateSale, error) {
	var (
		updated *domain.AffiliateSale
		from    domain.SaleStatus
	)
	err := uc.tx.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		current, err := store.Sales().GetByID(ctx, id)
		if err != nil {
			return err
		}
		from = current.Status
		if !from.CanTransition(to) {
			return domain.ErrInvalidTransition
		}
		updated, err = store.Sales().UpdateStatus(ctx, id, from, to)
		if err != nil {
			return err
		}
		if from.Counts() && !to.Counts() {
			return store.Stats().ReverseSale(ctx, updated.AffiliateID, updated.Commission)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.ObserveSaleTransition(string(from), string(to))
	uc.logger.Info("affiliate sale status changed",
		zap.String("sale_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return updated, nil
}

// Reconcile recomputes every affiliate's counters from the click and sale
// tables and corrects the ones that drifted. Each affiliate is handled in its
// own transaction holding the affiliate row, so concurrent increments wait
// instead of being overwritten.
func (uc *UseCase) Reconcile(ctx context.Context) ([]domain.AffiliateStatsDrift, error) {
	ids, err := uc.affiliates.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	var drifts []domain.AffiliateStatsDrift
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return drifts, err
		}
		drift, err := uc.reconcileOne(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrAffiliateNotFound) {
				continue
			}
			return drifts, err
		}
		if drift != nil {
			uc.logger.Warn("affiliate counters drifted",
				zap.String("affiliate_id", id),
				zap.Int64("clicks", drift.Previous.Clicks),
				zap.Int64("ledger_clicks", drift.Reconciled.Clicks),
				zap.Int64("sales", drift.Previous.Sales),
				zap.Int64("ledger_sales", drift.Reconciled.Sales),
				zap.String("commission", drift.Previous.Commission.StringFixed(2)),
				zap.String("ledger_commission", drift.Reconciled.Commission.StringFixed(2)))
			drifts = append(drifts, *drift)
		}
	}

	uc.metrics.ObserveDrift(len(drifts))
	return drifts, nil
}

func (uc *UseCase) reconcileOne(ctx context.Context, affiliateID string) (*domain.AffiliateStatsDrift, error) {
	var drift *domain.AffiliateStatsDrift
	err := uc.tx.WithinTx(ctx, func(ctx context.Context, store repository.Store) error {
		current, err := store.Stats().LockCounters(ctx, affiliateID)
		if err != nil {
			return err
		}
		actual, err := store.Stats().LedgerCounters(ctx, affiliateID)
		if err != nil {
			return err
		}
		if current.Equal(actual) {
			return nil
		}
		if err := store.Stats().SetCounters(ctx, affiliateID, actual); err != nil {
			return err
		}
		drift = &domain.AffiliateStatsDrift{AffiliateID: affiliateID, Previous: current, Reconciled: actual}
		return nil
	})
	return drift, err
}
