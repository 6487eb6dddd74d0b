package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyOrderStatus = "order_status:%d"

var TTLStatusCache = 5 * time.Minute

// StatusCache answers order-status lookups without a database round trip.
// It is strictly a read accelerator: the database stays the source of
// truth and every write path refreshes or drops the cached value.
type StatusCache interface {
	GetStatus(ctx context.Context, orderID int64) (string, bool)
	SetStatus(ctx context.Context, orderID int64, status string)
}

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

type RedisStatusCache struct {
	rdb *redis.Client
}

func NewStatusCache(rdb *redis.Client) *RedisStatusCache {
	return &RedisStatusCache{rdb: rdb}
}

func (c *RedisStatusCache) GetStatus(ctx context.Context, orderID int64) (string, bool) {
	s, err := c.rdb.Get(ctx, fmt.Sprintf(keyOrderStatus, orderID)).Result()
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}

func (c *RedisStatusCache) SetStatus(ctx context.Context, orderID int64, status string) {
	_ = c.rdb.Set(ctx, fmt.Sprintf(keyOrderStatus, orderID), status, TTLStatusCache).Err()
}

// NopStatusCache is used when no Redis address is configured.
type NopStatusCache struct{}

func (NopStatusCache) GetStatus(context.Context, int64) (string, bool) { return "", false }
func (NopStatusCache) SetStatus(context.Context, int64, string)       {}
