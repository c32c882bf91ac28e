package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"ventasvoz/internal/domain"
)

type RedisCatalogCache struct {
	client *redis.Client
}

func NewRedisCatalogCache(addr string, password string, db int) *RedisCatalogCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCatalogCache{client: client}
}

func (c *RedisCatalogCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCatalogCache) Close() error {
	return c.client.Close()
}

func snapshotKey(tenantID string) string {
	return "catalog-snapshot:" + tenantID
}

func (c *RedisCatalogCache) Get(ctx context.Context, tenantID string) (*domain.CatalogSnapshot, bool, error) {
	val, err := c.client.Get(ctx, snapshotKey(tenantID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var snapshot domain.CatalogSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, false, err
	}
	return &snapshot, true, nil
}

func (c *RedisCatalogCache) Set(ctx context.Context, tenantID string, snapshot *domain.CatalogSnapshot, ttl time.Duration) error {
	if snapshot == nil {
		return nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(tenantID), payload, ttl).Err()
}

func (c *RedisCatalogCache) Invalidate(ctx context.Context, tenantID string) error {
	return c.client.Del(ctx, snapshotKey(tenantID)).Err()
}
