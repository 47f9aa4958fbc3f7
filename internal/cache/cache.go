package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/maaaruch/tg-awards-bot/internal/domain"
	"github.com/maaaruch/tg-awards-bot/internal/storage"
)

// WinnersCache holds the last winners report that was fetched successfully.
// LoadWinners returns storage.ErrNotFound when nothing is cached.
type WinnersCache interface {
	LoadWinners(ctx context.Context) (domain.WinnersSnapshot, error)
	SaveWinners(ctx context.Context, snap domain.WinnersSnapshot) error
}

var _ WinnersCache = (*storage.Store)(nil)
var _ WinnersCache = (*RedisCache)(nil)

const DefaultWinnersKey = "awards:winners"

// RedisCache keeps the snapshot as one JSON value without TTL.
type RedisCache struct {
	client *redis.Client
	key    string
}

func NewRedisCache(ctx context.Context, addr, key string) (*RedisCache, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	c := redis.NewClient(opts)

	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return NewRedisCacheFromClient(c, key), nil
}

func NewRedisCacheFromClient(c *redis.Client, key string) *RedisCache {
	if key == "" {
		key = DefaultWinnersKey
	}
	return &RedisCache{client: c, key: key}
}

func (rc *RedisCache) LoadWinners(ctx context.Context) (domain.WinnersSnapshot, error) {
	raw, err := rc.client.Get(ctx, rc.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.WinnersSnapshot{}, storage.ErrNotFound
		}
		return domain.WinnersSnapshot{}, fmt.Errorf("error reading winners from redis: %w", err)
	}

	var snap domain.WinnersSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.WinnersSnapshot{}, fmt.Errorf("%w: decode winners cache: %v", storage.ErrNotFound, err)
	}
	return snap, nil
}

func (rc *RedisCache) SaveWinners(ctx context.Context, snap domain.WinnersSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := rc.client.Set(ctx, rc.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("error writing winners to redis: %w", err)
	}
	return nil
}

func (rc *RedisCache) Close() error {
	if err := rc.client.Close(); err != nil {
		return fmt.Errorf("error closing redis client: %w", err)
	}
	return nil
}
