package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/storefront/repository"
)

// Values are stored as "<fingerprint>|<order id>"; the order id is empty while
// the original checkout is still running.
const fieldSeparator = "|"

type idempotencyRepository struct {
	client     *redislib.Client
	prefix     string
	pendingTTL time.Duration
	ttl        time.Duration
}

// NewIdempotencyRepository creates a Redis-backed checkout idempotency store.
// Pending reservations expire after pendingTTL so a crashed request does not
// block the key forever; completed keys live for ttl.
func NewIdempotencyRepository(client *redislib.Client, pendingTTL, ttl time.Duration) repository.IdempotencyRepository {
	if pendingTTL <= 0 {
		pendingTTL = time.Minute
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &idempotencyRepository{
		client:     client,
		prefix:     "checkout:idem:",
		pendingTTL: pendingTTL,
		ttl:        ttl,
	}
}

func (r *idempotencyRepository) Reserve(ctx context.Context, key, fingerprint string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(key), encodeRecord(fingerprint, ""), r.pendingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}

func (r *idempotencyRepository) Lookup(ctx context.Context, key string) (*repository.IdempotencyRecord, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redislib.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	fingerprint, orderID, _ := strings.Cut(value, fieldSeparator)
	return &repository.IdempotencyRecord{OrderID: orderID, Fingerprint: fingerprint}, nil
}

func (r *idempotencyRepository) Complete(ctx context.Context, key, fingerprint, orderID string) error {
	return r.client.Set(ctx, r.key(key), encodeRecord(fingerprint, orderID), r.ttl).Err()
}

func (r *idempotencyRepository) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *idempotencyRepository) key(id string) string {
	return fmt.Sprintf("%s%s", r.prefix, id)
}

func encodeRecord(fingerprint, orderID string) string {
	return fingerprint + fieldSeparator + orderID
}
