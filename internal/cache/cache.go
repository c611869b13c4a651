package cache

import (
	"context"
	"time"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
)

type InsightCache interface {
	Get(ctx context.Context, key string) (*domain.Insight, bool, error)
	Set(ctx context.Context, key string, value *domain.Insight, ttl time.Duration) error
}

type NoopInsightCache struct{}

func (NoopInsightCache) Get(_ context.Context, _ string) (*domain.Insight, bool, error) {
	return nil, false, nil
}

func (NoopInsightCache) Set(_ context.Context, _ string, _ *domain.Insight, _ time.Duration) error {
	return nil
}
