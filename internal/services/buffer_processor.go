package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/internal/infrastructure/buffer"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ClickRecorder replays a buffered click. Replaying a click that already
// landed must succeed without counting it twice.
type ClickRecorder interface {
	RecordClick(ctx context.Context, click *domain.AffiliateClick) error
}

// ClickRecorderFunc adapts a function to ClickRecorder.
type ClickRecorderFunc func(ctx context.Context, click *domain.AffiliateClick) error

func (f ClickRecorderFunc) RecordClick(ctx context.Context, click *domain.AffiliateClick) error {
	return f(ctx, click)
}

// ProcessorConfig controls how frequently the buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// BufferProcessor replays writes parked in the local buffer once Postgres is
// reachable again.
type BufferProcessor struct {
	store   *buffer.Store
	monitor ConnectionHealth
	clicks  ClickRecorder
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	clicks ClickRecorder,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:   store,
		monitor: monitor,
		clicks:  clicks,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = bp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer drain failed", zap.Error(err))
		}
	})

	return bp
}

func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop waits for a running drain to finish or ctx to expire.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Drain replays one batch of buffered items synchronously.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return nil
	}

	if bp.cfg.Retention > 0 {
		removed, err := bp.store.Cleanup(time.Now().Add(-bp.cfg.Retention))
		if err != nil {
			bp.logger.Warn("buffer cleanup failed", zap.Error(err))
		} else if removed > 0 {
			bp.logger.Warn("expired buffer items dropped", zap.Int("count", removed))
		}
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := bp.processItem(ctx, item); err != nil {
			bp.retry(item, err)
			continue
		}
		if err := bp.store.Remove(item); err != nil {
			bp.logger.Warn("failed to purge processed buffer item", zap.String("item_id", item.ID), zap.Error(err))
		}
	}
	return nil
}

// Enqueue parks item for a later drain.
func (bp *BufferProcessor) Enqueue(item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return errors.New("buffer processor not configured")
	}
	return bp.store.Enqueue(item)
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (bp *BufferProcessor) retry(item buffer.Item, cause error) {
	bp.logger.Error("failed to process buffer item",
		zap.String("item_id", item.ID),
		zap.String("entity", item.Entity),
		zap.Int("retries", item.Retries),
		zap.Error(cause))

	// undecodable payloads and domain rejections will never succeed
	var syntaxErr *json.SyntaxError
	item.Retries++
	if item.Retries >= bp.cfg.MaxRetries ||
		errors.As(cause, &syntaxErr) ||
		errors.Is(cause, errUnsupported) ||
		domain.IsPermanent(cause) {
		bp.logger.Warn("dropping buffer item", zap.String("item_id", item.ID), zap.String("key", item.Key))
		if err := bp.store.Remove(item); err != nil {
			bp.logger.Warn("failed to remove buffer item", zap.Error(err))
		}
		return
	}
	if err := bp.store.Requeue(item); err != nil {
		bp.logger.Error("failed to requeue buffer item", zap.Error(err))
	}
}

var errUnsupported = errors.New("unsupported buffer item")

func (bp *BufferProcessor) processItem(ctx context.Context, item buffer.Item) error {
	switch item.Entity {
	case buffer.EntityClick:
		if item.Operation != buffer.OperationRecord {
			return fmt.Errorf("%w: operation %s", errUnsupported, item.Operation)
		}
		if bp.clicks == nil {
			return errors.New("click recorder not configured")
		}
		var click domain.AffiliateClick
		if err := json.Unmarshal(item.Data, &click); err != nil {
			return err
		}
		return bp.clicks.RecordClick(ctx, &click)
	default:
		return fmt.Errorf("%w: entity %s", errUnsupported, item.Entity)
	}
}
