package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/domain"
)

const coopKeyPrefix = "user:"

type RedisCoopCache struct {
	client *redis.Client
}

func NewRedisCoopCache(client *redis.Client) *RedisCoopCache {
	return &RedisCoopCache{client: client}
}

type cachedCoop struct {
	Identifier           string          `json:"identifier"`
	Name                 string          `json:"name"`
	Hostname             *string         `json:"hostname,omitempty"`
	Config               json.RawMessage `json:"config,omitempty"`
	Logo                 *string         `json:"logo,omitempty"`
	NeedUserVerification bool            `json:"need_user_verification"`
	DisableSignUp        bool            `json:"disable_sign_up"`
	CreatedAt            time.Time       `json:"created_at"`
}

func (c *RedisCoopCache) Get(ctx context.Context, key string) (*domain.Coop, error) {
	raw, err := c.client.Get(ctx, coopKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	coop, err := decodeCoop(raw)
	if err != nil {
		return nil, err
	}
	return &coop, nil
}

func (c *RedisCoopCache) Put(ctx context.Context, key string, coop domain.Coop, ttl time.Duration) error {
	raw, err := encodeCoop(coop)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, coopKeyPrefix+key, raw, ttl).Err()
}

func (c *RedisCoopCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, coopKeyPrefix+key)
	}
	return c.client.Del(ctx, prefixed...).Err()
}

func encodeCoop(coop domain.Coop) ([]byte, error) {
	raw, err := json.Marshal(cachedCoop{
		Identifier:           coop.Identifier,
		Name:                 coop.Name,
		Hostname:             coop.Hostname,
		Config:               coop.Config,
		Logo:                 coop.Logo,
		NeedUserVerification: coop.NeedUserVerification,
		DisableSignUp:        coop.DisableSignUp,
		CreatedAt:            coop.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode cached coop: %w", err)
	}
	return raw, nil
}

func decodeCoop(raw []byte) (domain.Coop, error) {
	var item cachedCoop
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.Coop{}, fmt.Errorf("decode cached coop: %w", err)
	}
	return domain.Coop{
		Identifier:           item.Identifier,
		Name:                 item.Name,
		Hostname:             item.Hostname,
		Config:               item.Config,
		Logo:                 item.Logo,
		NeedUserVerification: item.NeedUserVerification,
		DisableSignUp:        item.DisableSignUp,
		CreatedAt:            item.CreatedAt,
	}, nil
}
