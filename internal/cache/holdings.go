// Package cache keeps read-through copies of portfolio holdings. Holdings are
// derived data, so every entry is dropped after a ledger write rather than
// updated in place.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

const keyPrefix = "ledger:holdings:"

// HoldingsCache stores holdings in Redis when a client is configured and in a
// process-local LRU otherwise. The local tier is not shared between
// instances, so it is only suitable for single-instance deployments.
type HoldingsCache struct {
	rdb   *redis.Client
	local *lru.Cache
	ttl   time.Duration
}

// New connects to the Redis server at redisURL. An empty URL selects the
// in-process LRU of localSize entries.
func New(redisURL string, localSize int, ttl time.Duration) (*HoldingsCache, error) {
	if redisURL == "" {
		return NewLocal(localSize, ttl)
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewWithClient(redis.NewClient(opt), ttl), nil
}

// NewWithClient wraps an existing Redis client
func NewWithClient(rdb *redis.Client, ttl time.Duration) *HoldingsCache {
	return &HoldingsCache{rdb: rdb, ttl: ttl}
}

// NewLocal builds a cache backed only by an in-process LRU
func NewLocal(size int, ttl time.Duration) (*HoldingsCache, error) {
	local, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &HoldingsCache{local: local, ttl: ttl}, nil
}

type entry struct {
	Holdings []*models.Holding `json:"holdings"`
	StoredAt time.Time         `json:"stored_at"`
}

func key(portfolioID uuid.UUID) string {
	return keyPrefix + portfolioID.String()
}

// GetHoldings returns the cached holdings of a portfolio
func (c *HoldingsCache) GetHoldings(ctx context.Context, portfolioID uuid.UUID) ([]*models.Holding, bool) {
	raw, err := c.get(ctx, key(portfolioID))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("portfolio_id", portfolioID.String()).Msg("holdings cache read failed")
		}
		return nil, false
	}

	data, err := decompress(raw)
	if err != nil {
		log.Warn().Err(err).Str("portfolio_id", portfolioID.String()).Msg("corrupt holdings cache entry")
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		log.Warn().Err(err).Str("portfolio_id", portfolioID.String()).Msg("corrupt holdings cache entry")
		return nil, false
	}
	if c.ttl > 0 && time.Since(e.StoredAt) > c.ttl {
		return nil, false
	}
	return e.Holdings, true
}

// SetHoldings caches the holdings of a portfolio
func (c *HoldingsCache) SetHoldings(ctx context.Context, portfolioID uuid.UUID, holdings []*models.Holding) {
	data, err := json.Marshal(entry{Holdings: holdings, StoredAt: time.Now()})
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode holdings for cache")
		return
	}
	raw, err := compress(data)
	if err != nil {
		log.Warn().Err(err).Msg("failed to compress holdings for cache")
		return
	}

	k := key(portfolioID)
	if c.rdb == nil {
		c.local.Add(k, raw)
		return
	}
	if err := c.rdb.Set(ctx, k, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("portfolio_id", portfolioID.String()).Msg("holdings cache write failed")
	}
}

// Invalidate drops the cached holdings of a portfolio
func (c *HoldingsCache) Invalidate(ctx context.Context, portfolioID uuid.UUID) {
	k := key(portfolioID)
	if c.rdb == nil {
		c.local.Remove(k)
		return
	}
	if err := c.rdb.Del(ctx, k).Err(); err != nil {
		log.Error().Err(err).Str("portfolio_id", portfolioID.String()).Msg("holdings cache invalidation failed")
	}
}

// Ping checks the Redis connection. The local tier is always available.
func (c *HoldingsCache) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close releases the Redis connection
func (c *HoldingsCache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *HoldingsCache) get(ctx context.Context, k string) ([]byte, error) {
	if c.rdb == nil {
		v, ok := c.local.Get(k)
		if !ok {
			return nil, redis.Nil
		}
		return v.([]byte), nil
	}
	return c.rdb.Get(ctx, k).Bytes()
}
