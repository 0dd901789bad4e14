package ports

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
)

// CoopCache keeps resolved coop configuration close to the public config endpoints.
// Get returns (nil, nil) on a miss.
type CoopCache interface {
	Get(ctx context.Context, key string) (*domain.Coop, error)
	Put(ctx context.Context, key string, coop domain.Coop, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}
