package cache

import (
	"context"
	"time"

	"dokon/backend/internal/domain"
)

// ProductCache holds per-store product listings. Writes invalidate on any
// product mutation, so a stale entry lives at most one TTL.
type ProductCache interface {
	Get(ctx context.Context, storeID int64) ([]domain.Product, bool, error)
	Set(ctx context.Context, storeID int64, products []domain.Product, ttl time.Duration) error
	Invalidate(ctx context.Context, storeID int64) error
}

type NoopProductCache struct{}

func (NoopProductCache) Get(_ context.Context, _ int64) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductCache) Set(_ context.Context, _ int64, _ []domain.Product, _ time.Duration) error {
	return nil
}

func (NoopProductCache) Invalidate(_ context.Context, _ int64) error {
	return nil
}
