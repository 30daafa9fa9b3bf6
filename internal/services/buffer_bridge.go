package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/internal/infrastructure/buffer"
	"github.com/fastygo/storefront/usecase"
)

// BufferBridge adapts the processor to the use-case buffer port.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferClick(_ context.Context, click *domain.AffiliateClick) error {
	if b.processor == nil || click == nil || click.ID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(click)
	if err != nil {
		return err
	}
	// the click id doubles as the item id so a replay stays idempotent
	return b.processor.Enqueue(buffer.Item{
		ID:        click.ID,
		Key:       click.AffiliateID,
		Entity:    buffer.EntityClick,
		Operation: buffer.OperationRecord,
		Data:      payload,
		Priority:  2,
		Timestamp: click.CreatedAt,
	})
}

var _ usecase.ClickBuffer = (*BufferBridge)(nil)
