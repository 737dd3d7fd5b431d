package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/glamexpress/config"
	"github.com/Domenick1991/glamexpress/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache shares booking views and action locks between BFF replicas.
type RedisCache struct {
	client     *redis.Client
	bookingTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, bookingTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		bookingTTL: bookingTTL,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	data, err := c.client.Get(ctx, bookingKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var b domain.Booking
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *RedisCache) SetBooking(ctx context.Context, b *domain.Booking) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, bookingKey(b.ID), payload, c.bookingTTL).Err()
}

func (c *RedisCache) DeleteBooking(ctx context.Context, id string) error {
	return c.client.Del(ctx, bookingKey(id)).Err()
}

func (c *RedisCache) AcquireActionLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, actionLockKey(bookingID), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseActionLock(ctx context.Context, bookingID string) error {
	return c.client.Del(ctx, actionLockKey(bookingID)).Err()
}

func bookingKey(id string) string {
	return "cache:booking:" + id
}

func actionLockKey(bookingID string) string {
	return fmt.Sprintf("lock:booking:%s:action", bookingID)
}
