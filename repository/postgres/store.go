package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/repository"
)

type store struct {
	q Querier
}

// NewStore exposes the transactional repositories on top of q.
func NewStore(q Querier) repository.Store {
	return &store{q: q}
}

func (s *store) Affiliates() repository.AffiliateRepository { return NewAffiliateRepository(s.q) }
func (s *store) Stats() repository.AffiliateStatsRepository { return NewStatsRepository(s.q) }
func (s *store) Clicks() repository.ClickRepository         { return NewClickRepository(s.q) }
func (s *store) Sales() repository.SaleRepository           { return NewSaleRepository(s.q) }
func (s *store) Orders() repository.OrderRepository         { return NewOrderRepository(s.q) }

type transactor struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewTransactor returns a Transactor running units of work in READ COMMITTED
// transactions. Counter writes rely on row-level locks taken by the atomic
// UPDATE statements, not on the isolation level.
func NewTransactor(pool *pgxpool.Pool, logger *zap.Logger) repository.Transactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &transactor{pool: pool, logger: logger}
}

func (t *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, store repository.Store) error) error {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(ctx, NewStore(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			t.logger.Error("tx rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
