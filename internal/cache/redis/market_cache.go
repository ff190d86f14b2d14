package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// MarketCache implements domain.MarketCache.
//
// Key schema:
//
//	augurion:market:{id}          hash, field "data" holds the JSON market
//	augurion:market:slug:{slug}   string, the market id
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache. A non-positive ttl defaults to five
// minutes.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MarketCache{rdb: c.Underlying(), ttl: ttl}
}

func marketKey(id string) string    { return keyPrefix + "market:" + id }
func marketSlugKey(s string) string { return keyPrefix + "market:slug:" + s }

// Set caches market and its slug index.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID, err)
	}
	key := marketKey(market.ID)

	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, mc.ttl)
	if market.Slug != "" {
		pipe.Set(ctx, marketSlugKey(market.Slug), market.ID, mc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID, err)
	}
	return nil
}

// Get returns a cached market or domain.ErrNotFound.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	data, err := mc.rdb.HGet(ctx, marketKey(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}
	var m domain.Market
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return m, nil
}

// GetBySlug resolves the slug index and returns the cached market.
func (mc *MarketCache) GetBySlug(ctx context.Context, slug string) (domain.Market, error) {
	id, err := mc.rdb.Get(ctx, marketSlugKey(slug)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market by slug %s: %w", slug, err)
	}
	return mc.Get(ctx, id)
}

// Invalidate drops a market and its slug index entry.
func (mc *MarketCache) Invalidate(ctx context.Context, id string) error {
	m, err := mc.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}

	pipe := mc.rdb.TxPipeline()
	pipe.Del(ctx, marketKey(id))
	if err == nil && m.Slug != "" {
		pipe.Del(ctx, marketSlugKey(m.Slug))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

var _ domain.MarketCache = (*MarketCache)(nil)
