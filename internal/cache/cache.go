package cache

import (
	"context"
	"time"

	"ventasvoz/internal/domain"
)

// CatalogCache holds per-tenant catalog snapshots so prompt building does not
// hit the store on every turn. Entries are invalidated whenever a product is
// auto-created or a price changes.
type CatalogCache interface {
	Get(ctx context.Context, tenantID string) (*domain.CatalogSnapshot, bool, error)
	Set(ctx context.Context, tenantID string, snapshot *domain.CatalogSnapshot, ttl time.Duration) error
	Invalidate(ctx context.Context, tenantID string) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) Get(_ context.Context, _ string) (*domain.CatalogSnapshot, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) Set(_ context.Context, _ string, _ *domain.CatalogSnapshot, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
